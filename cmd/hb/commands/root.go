package commands

import (
	"fmt"
	"os"

	"hiddenbox/pkg/app"
	"hiddenbox/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	HB *app.App
)

var rootCmd = &cobra.Command{
	Use:           "hb",
	Short:         "hiddenbox: chunked file encryption",
	SilenceUsage:  true,
	SilenceErrors: false,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init 命令就是去创建环境的，跳过依赖检查
		if cmd.Name() == "init" || HB != nil {
			return nil
		}

		var err error
		HB, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize hiddenbox: %w\n(Did you run 'hb init'?)", err)
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	defer func() {
		if HB != nil {
			HB.Close()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.hb/config.yaml or $HOME/.hb/config.yaml)")

	// 既可以在 yaml 里写，也可以用参数覆盖
	flags.String("storage-path", "", "Directory to store encrypted chunks")
	flags.Int64("chunk-size", 0, "Plaintext bytes per chunk")
	flags.Int("workers", 0, "Concurrent chunk workers (0 = GOMAXPROCS)")

	for key, flag := range map[string]string{
		"storage.path":   "storage-path",
		"chunk.size":     "chunk-size",
		"engine.workers": "workers",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}

func requireApp() error {
	if HB == nil {
		return fmt.Errorf("app not initialized")
	}
	return nil
}
