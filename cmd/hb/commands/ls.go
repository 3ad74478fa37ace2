package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"hiddenbox/pkg/meta"

	"github.com/spf13/cobra"
)

var (
	listLimit int
	listName  string
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List encrypted files in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()

		var (
			records []meta.ManifestRecord
			err     error
		)
		if listName != "" {
			records, err = HB.Catalog.FindByName(ctx, listName, listLimit)
		} else {
			records, err = HB.Catalog.ListManifests(ctx, listLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to query catalog: %w", err)
		}

		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No encrypted files yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE_ID\tNAME\tSIZE\tCHUNKS\tCREATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				r.FileID, r.OriginalName, r.TotalSize, r.TotalChunks, r.CreatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show [manifest-file | file-id]",
	Short: "Print a manifest's chunk layout (without the key)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		m, err := loadManifest(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file_id:      %s\n", m.FileID)
		fmt.Fprintf(out, "name:         %s\n", m.OriginalName)
		fmt.Fprintf(out, "total_size:   %d\n", m.TotalSize)
		fmt.Fprintf(out, "chunk_size:   %d\n", m.ChunkSize)
		fmt.Fprintf(out, "total_chunks: %d\n\n", m.TotalChunks)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER\tCHUNK_ID\tSIZE\tHASH\tLOCATION")
		for _, c := range m.Chunks {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", c.Order, c.ChunkID, c.Size, c.Hash.String()[:min(12, len(c.Hash))], c.StorageLocation)
		}
		return w.Flush()
	},
}

func init() {
	lsCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum number of entries")
	lsCmd.Flags().StringVar(&listName, "name", "", "Only show files with this original name")
	rootCmd.AddCommand(lsCmd, showCmd)
}
