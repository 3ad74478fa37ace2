package main

import (
	"log"

	"hiddenbox/cmd/hb/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
