package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <snapshot>",
		Short: "Write the collection to a portable snapshot file",
		Long: `Write the embeddings of a freshly indexed --folder (or of the catalog) into a
single zstd-compressed snapshot file that "similar --snapshot" can read.`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}
	cmd.Flags().StringP("folder", "f", "", "Index this folder instead of loading the catalog (default $IMAGE_FOLDER when no catalog exists)")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	folder, _ := cmd.Flags().GetString("folder")
	a, err := newApp(cmd, folder)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.loadCollection(cmd); err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := a.engine.WriteSnapshot(f); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d embeddings to %s\n", a.engine.Len(), args[0])
	return nil
}
