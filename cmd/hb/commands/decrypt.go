package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var outputPath string

var decryptCmd = &cobra.Command{
	Use:   "decrypt [manifest-file | file-id]",
	Short: "Fetch, verify and decrypt a file",
	Long: `Reassemble the original file. Every chunk is verified before any byte is
written; on failure the output path is left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		m, err := loadManifest(ctx, args[0])
		if err != nil {
			return err
		}

		target := outputPath
		if target == "" {
			// 默认还原到当前目录，只取文件名，防止 original_name 带路径
			target = filepath.Base(m.OriginalName)
		}
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("refusing to overwrite existing file %s", target)
		}

		// 先写临时文件，Reassemble 只有在全部分片校验通过后才会写入
		dir := filepath.Dir(target)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		tmp, err := os.CreateTemp(dir, ".hb-restore-*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())

		if err := HB.Engine.Reassemble(ctx, m, tmp); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		if err := os.Rename(tmp.Name(), target); err != nil {
			return err
		}

		fmt.Fprintf(out, "🔓 %s -> %s (%d bytes)\n", m.FileID, target, m.TotalSize)
		return nil
	},
}

func init() {
	decryptCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: original name in the current directory)")
	rootCmd.AddCommand(decryptCmd)
}
