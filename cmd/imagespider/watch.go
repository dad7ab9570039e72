package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/viant/imagespider/imaging"
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [folder]",
		Short: "Keep the index current while a folder changes",
		Long: `Index a folder, then watch it and embed new or modified images as they appear.
Changed images replace their previous embedding. The catalog, when configured,
is saved after every batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	a, err := newApp(cmd, folderArg(args))
	if err != nil {
		return err
	}
	defer a.Close()

	folder, err := a.requireFolder()
	if err != nil {
		return err
	}
	report, err := a.indexFolder(cmd)
	if err != nil {
		return err
	}
	if err := a.render.Report(report); err != nil {
		return err
	}
	if err := a.saveCatalog(cmd); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := addWatchDirs(watcher, folder); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes...\n", folder)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := map[string]struct{}{}

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchDirs(watcher, event.Name)
					continue
				}
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(debounce)
			}
			pending[event.Name] = struct{}{}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", "error", err)
		case <-timer.C:
			paths := existing(pending)
			clear(pending)
			if len(paths) == 0 {
				continue
			}
			report, err := a.engine.AddPaths(cmd.Context(), paths, true)
			if err != nil {
				return err
			}
			if err := a.render.Report(report); err != nil {
				return err
			}
			if err := a.engine.Rebuild(cmd.Context()); err != nil {
				return err
			}
			if err := a.saveCatalog(cmd); err != nil {
				a.log.Error("save catalog", "error", err)
			}
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	if !imaging.Accepts(event.Name) {
		return true
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0
}

// existing returns the pending paths that are still regular files, sorted.
func existing(pending map[string]struct{}) []string {
	out := make([]string, 0, len(pending))
	for p := range pending {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}
