package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"hiddenbox/pkg/ignore"

	"github.com/spf13/cobra"
)

const defaultIgnore = `# hiddenbox ignore rules (gitignore syntax)
# .hb, manifests and config.yaml are always ignored
*.tmp
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a hiddenbox repository",
	Long:  `Create the .hb directory holding encrypted chunks and the manifest catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		repoPath := filepath.Join(wd, ".hb")
		chunksPath := filepath.Join(repoPath, "chunks")

		if _, err := os.Stat(repoPath); err == nil {
			fmt.Fprintf(out, "⚠️  hiddenbox repository already exists in %s\n", repoPath)
			return nil
		}

		// 分片目录权限收紧，Manifest 目录数据库里有密钥
		if err := os.MkdirAll(chunksPath, 0o700); err != nil {
			return fmt.Errorf("failed to create repo directory: %w", err)
		}

		ignorePath := filepath.Join(wd, ignore.FileName)
		if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
			if err := os.WriteFile(ignorePath, []byte(defaultIgnore), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", ignore.FileName, err)
			}
		}

		fmt.Fprintf(out, "✅ Initialized empty hiddenbox repository in %s\n", repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
