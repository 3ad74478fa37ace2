package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/engine"
	"hiddenbox/pkg/ignore"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var manifestDir string

var encryptCmd = &cobra.Command{
	Use:   "encrypt [path]",
	Short: "Split, encrypt and store a file or directory",
	Long: `Encrypt a file (or every non-ignored file under a directory) into chunks.
Each file gets a fresh key; its manifest is recorded in the catalog and,
with --manifest-dir, also written next to it as <file_id>.manifest.<format>.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		target := args[0]

		format, err := core.ParseFormat(viper.GetString("manifest.format"))
		if err != nil {
			return err
		}

		start := time.Now()
		count := 0
		var totalSize int64

		encryptOne := func(path, display string) error {
			m, err := encryptFile(ctx, path, format)
			if err != nil {
				return fmt.Errorf("failed to encrypt %s: %w", display, err)
			}
			count++
			totalSize += m.TotalSize
			fmt.Fprintf(out, "🔒 %s -> %s (%d bytes, %d chunks)\n", display, m.FileID, m.TotalSize, m.TotalChunks)
			return nil
		}

		info, err := os.Stat(target)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			if err := encryptOne(target, filepath.Base(target)); err != nil {
				return err
			}
		} else {
			matcher, err := ignore.NewMatcher(target)
			if err != nil {
				return fmt.Errorf("failed to load ignore rules: %w", err)
			}
			if err := matcher.Walk(encryptOne); err != nil {
				return err
			}
		}

		if count == 0 {
			fmt.Fprintln(out, "⚠️  No files encrypted.")
			return nil
		}
		fmt.Fprintf(out, "✅ Encrypted %d files (%d bytes) in %s\n", count, totalSize, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// encryptFile 分片一个文件并登记目录。
// 失败时清理已经写入的孤儿分片。
func encryptFile(ctx context.Context, path string, format core.Format) (*core.Manifest, error) {
	m, err := HB.Engine.Fragment(ctx, path)
	if err != nil {
		var ee *engine.Error
		if errors.As(err, &ee) && len(ee.Orphans) > 0 {
			if perr := HB.Engine.PurgeLocations(context.WithoutCancel(ctx), ee.Orphans); perr != nil {
				HB.Logger.Error("failed to purge orphan chunks", "count", len(ee.Orphans), "err", perr)
			}
		}
		return nil, err
	}

	if err := HB.Catalog.SaveManifest(ctx, m); err != nil {
		_ = HB.Engine.Purge(context.WithoutCancel(ctx), m)
		return nil, err
	}

	if manifestDir != "" {
		if err := writeManifest(m, format); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func writeManifest(m *core.Manifest, format core.Format) error {
	raw, err := m.Encode(format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(manifestDir, 0o700); err != nil {
		return err
	}
	// Manifest 里有明文密钥
	path := filepath.Join(manifestDir, fmt.Sprintf("%s.manifest.%s", m.FileID, format))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	encryptCmd.Flags().StringVar(&manifestDir, "manifest-dir", "", "Also write each manifest into this directory")
	encryptCmd.Flags().String("format", "json", "Manifest file format: json or cbor")
	if err := viper.BindPFlag("manifest.format", encryptCmd.Flags().Lookup("format")); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(encryptCmd)
}
