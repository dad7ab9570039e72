package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/viant/imagespider/engine"
)

// writeOutput writes summary.txt and similar_images.txt into a new
// timestamped folder under base and returns its path. The similarity report
// uses the first indexed image as reference.
func writeOutput(ctx context.Context, base string, eng *engine.Engine, report *engine.Report, k int) (string, error) {
	dir := filepath.Join(base, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(dir, "summary.txt"), func(r *renderer) error {
		return r.Report(report)
	}); err != nil {
		return "", err
	}
	ref, ok := eng.First()
	if !ok {
		return dir, nil
	}
	res, err := eng.FindSimilar(ctx, ref.ID, k)
	if err != nil {
		return "", err
	}
	view := similarFromResult(refView{ID: ref.ID, Path: ref.Path}, res, recordPath(eng))
	return dir, writeFile(filepath.Join(dir, "similar_images.txt"), func(r *renderer) error {
		return r.Similar(view)
	})
}

func writeFile(path string, render func(*renderer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(newPlainRenderer(f)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordPath(eng *engine.Engine) pathOf {
	return func(id string) string {
		if r, ok := eng.Record(id); ok {
			return r.Path
		}
		return ""
	}
}
