package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viant/imagespider/engine"
)

func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [folder]",
		Short: "Index a folder of images",
		Long: `Scan a folder recursively, embed every image and build the similarity index.
The folder defaults to $IMAGE_FOLDER. With a catalog configured the embeddings
are saved for later queries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIndex,
	}
	cmd.Flags().Bool("all-files", false, "Submit every file, not only recognised image extensions")
	cmd.Flags().StringP("output", "o", "", "Write summary.txt and similar_images.txt into a timestamped folder here")
	cmd.Flags().IntP("number", "n", 0, "Matches in the similarity report (default k_default)")
	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, folderArg(args))
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.indexFolder(cmd)
	if err != nil {
		return err
	}
	if err := a.render.Report(report); err != nil {
		return err
	}
	if report.Succeeded == 0 {
		return errors.New("no valid images found")
	}
	if err := a.saveCatalog(cmd); err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return nil
	}
	k, _ := cmd.Flags().GetInt("number")
	dir, err := writeOutput(cmd.Context(), output, a.engine, report, k)
	if err != nil {
		return err
	}
	a.log.Info("results saved", "dir", dir)
	return nil
}

// indexFolder enumerates the configured folder and indexes it.
func (a *app) indexFolder(cmd *cobra.Command) (*engine.Report, error) {
	folder, err := a.requireFolder()
	if err != nil {
		return nil, err
	}
	allFiles, _ := cmd.Flags().GetBool("all-files")
	enumerate := engine.EnumerateImages
	if allFiles {
		enumerate = engine.Enumerate
	}
	paths, err := enumerate(folder)
	if err != nil {
		return nil, err
	}
	a.log.Info("scan completed", "folder", folder, "files", len(paths))
	return a.engine.IndexCollection(cmd.Context(), paths)
}

func (a *app) saveCatalog(cmd *cobra.Command) error {
	c, err := a.openCatalog()
	if err != nil || c == nil {
		return err
	}
	defer c.Close()
	if err := a.engine.Save(cmd.Context(), c); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	a.log.Info("catalog saved", "path", a.cfg.Catalog, "entries", a.engine.Len())
	return nil
}
