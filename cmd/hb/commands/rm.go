package commands

import (
	"fmt"

	"hiddenbox/pkg/types"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [file-id...]",
	Short: "Delete encrypted files: their chunks and catalog entries",
	Long:  `Purge every chunk referenced by the manifest, then drop the catalog entry. Missing chunks are ignored, so rm can be retried.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		for _, arg := range args {
			id := types.FileID(arg)
			m, err := HB.Catalog.GetManifest(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", id, err)
			}

			// 先删分片再删目录：中途失败时目录里仍留有位置信息，可以重试
			if err := HB.Engine.Purge(ctx, m); err != nil {
				return fmt.Errorf("failed to purge chunks of %s: %w", id, err)
			}
			if err := HB.Catalog.DeleteManifest(ctx, id); err != nil {
				return fmt.Errorf("failed to remove %s from catalog: %w", id, err)
			}
			fmt.Fprintf(out, "🗑️  Removed %s (%s, %d chunks)\n", id, m.OriginalName, m.TotalChunks)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
