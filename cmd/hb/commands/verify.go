package commands

import (
	"errors"
	"fmt"

	"hiddenbox/pkg/engine"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [manifest-file | file-id]",
	Short: "Check that every chunk is present, intact and authentic",
	Args:  cobra.ExactArgs(1),
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

		err = HB.Engine.Verify(ctx, m)
		if err == nil {
			fmt.Fprintf(out, "✅ %s: %d chunks OK\n", m.FileID, m.TotalChunks)
			return nil
		}

		// errors.Join 的结果可以拆开逐条打印
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				fmt.Fprintf(out, "❌ %v\n", e)
			}
			return fmt.Errorf("%s: %d of %d chunks failed verification", m.FileID, len(joined.Unwrap()), m.TotalChunks)
		}
		fmt.Fprintf(out, "❌ %v\n", err)
		return fmt.Errorf("%s failed verification (%s): %w", m.FileID, engine.KindOf(err), err)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
