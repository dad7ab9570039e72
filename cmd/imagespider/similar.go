package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar [reference]",
		Short: "Rank images by similarity to a reference",
		Long: `Rank the collection against a reference image, given as an indexed identifier,
an indexed path or any image file. Without a reference the first indexed image
is used. The collection comes from --snapshot, a given --folder, the catalog,
or the configured folder, in that order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSimilar,
	}
	cmd.Flags().IntP("number", "n", 0, "Number of matches (default k_default)")
	cmd.Flags().StringP("folder", "f", "", "Index this folder instead of loading the catalog (default $IMAGE_FOLDER when no catalog exists)")
	cmd.Flags().String("snapshot", "", "Load the collection from a snapshot file")
	cmd.Flags().Bool("sql", false, "Rank inside the catalog database instead of the in-memory index")
	return cmd
}

func runSimilar(cmd *cobra.Command, args []string) error {
	folder, _ := cmd.Flags().GetString("folder")
	a, err := newApp(cmd, folder)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.loadCollection(cmd); err != nil {
		return err
	}

	ref := folderArg(args)
	if ref == "" {
		first, ok := a.engine.First()
		if !ok {
			return errors.New("collection is empty")
		}
		ref = first.ID
	}
	view := refView{ID: a.engine.Identifier(ref)}
	if r, ok := a.engine.Record(view.ID); ok {
		view.Path = r.Path
	} else if r, ok := a.engine.Record(ref); ok {
		view = refView{ID: r.ID, Path: r.Path}
	} else {
		view.Path = ref
	}

	k, _ := cmd.Flags().GetInt("number")
	if k <= 0 {
		k = a.cfg.KDefault
	}
	if useSQL, _ := cmd.Flags().GetBool("sql"); useSQL {
		return a.similarSQL(cmd, ref, view, k)
	}
	res, err := a.engine.FindSimilar(cmd.Context(), ref, k)
	if err != nil {
		return err
	}
	return a.render.Similar(similarFromResult(view, res, recordPath(a.engine)))
}

func (a *app) similarSQL(cmd *cobra.Command, ref string, view refView, k int) error {
	if !a.catalogExists() {
		return errors.New("--sql requires an existing catalog")
	}
	c, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer c.Close()
	vec, err := a.engine.Embedding(cmd.Context(), ref)
	if err != nil {
		return err
	}
	metric := a.engine.Options().Index.Metric
	neighbors, err := c.Nearest(cmd.Context(), vec, metric, k)
	if err != nil {
		return err
	}
	return a.render.Similar(similarFromNeighbors(view, string(metric), neighbors, metric.Similarity))
}

// loadCollection fills the engine from --snapshot, an explicit --folder, the
// catalog, or by indexing the configured folder, in that order of preference.
func (a *app) loadCollection(cmd *cobra.Command) error {
	snapshot, _ := cmd.Flags().GetString("snapshot")
	explicitFolder := cmd.Flags().Changed("folder")
	switch {
	case snapshot != "":
		f, err := os.Open(snapshot)
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := a.engine.ReadSnapshot(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		a.log.Info("snapshot loaded", "path", snapshot, "entries", n)
		return nil
	case !explicitFolder && a.catalogExists():
		c, err := a.openCatalog()
		if err != nil {
			return err
		}
		defer c.Close()
		n, err := a.engine.Load(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		a.log.Info("catalog loaded", "path", a.cfg.Catalog, "entries", n)
		return nil
	}
	if explicitFolder && a.catalogExists() {
		a.log.Info("indexing --folder instead of loading the catalog", "folder", a.cfg.Folder, "catalog", a.cfg.Catalog)
	}
	report, err := a.indexFolder(cmd)
	if err != nil {
		return err
	}
	a.log.LogIndex(cmd.Context(), report)
	return nil
}
