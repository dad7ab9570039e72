package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/viant/imagespider/catalog"
	"github.com/viant/imagespider/engine"
	"github.com/viant/imagespider/index"
)

type renderer struct {
	out     io.Writer
	asJSON  bool
	heading *color.Color
	ok      *color.Color
	warn    *color.Color
	bad     *color.Color
	dim     *color.Color
}

func newRenderer(out io.Writer, asJSON bool) *renderer {
	return &renderer{
		out:     out,
		asJSON:  asJSON,
		heading: color.New(color.FgCyan, color.Bold),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		dim:     color.New(color.FgHiBlack),
	}
}

// newPlainRenderer writes uncoloured text, for report files.
func newPlainRenderer(out io.Writer) *renderer {
	r := newRenderer(out, false)
	for _, c := range []*color.Color{r.heading, r.ok, r.warn, r.bad, r.dim} {
		c.DisableColor()
	}
	return r
}

func (r *renderer) json(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *renderer) title(s string) {
	r.heading.Fprintln(r.out, s)
	r.heading.Fprintln(r.out, strings.Repeat("=", len(s)))
}

// Report renders an indexing summary.
func (r *renderer) Report(rep *engine.Report) error {
	if r.asJSON {
		return r.json(rep)
	}
	r.title("Processing Summary")
	fmt.Fprintf(r.out, "Processed at: %s\n", rep.StartedAt.Format(time.RFC3339))
	if rep.Root != "" {
		fmt.Fprintf(r.out, "Input folder: %s\n", rep.Root)
	}
	fmt.Fprintf(r.out, "Model: %s (%s)\n", rep.Model, rep.Device)
	fmt.Fprintf(r.out, "Images: %d total, ", rep.Total)
	r.ok.Fprintf(r.out, "%d succeeded", rep.Succeeded)
	fmt.Fprint(r.out, ", ")
	r.warn.Fprintf(r.out, "%d skipped", len(rep.Skipped))
	fmt.Fprint(r.out, ", ")
	r.bad.Fprintf(r.out, "%d failed", len(rep.Failed))
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Index: %d entries (%s) in %s\n", rep.IndexSize, rep.Strategy, rep.Elapsed.Round(time.Millisecond))

	if len(rep.Processed) > 0 {
		fmt.Fprintln(r.out, "\nProcessed files:")
		for _, p := range rep.Processed {
			fmt.Fprintf(r.out, "- %s\n", p)
		}
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintln(r.out, "\nSkipped:")
		for _, s := range rep.Skipped {
			r.warn.Fprintf(r.out, "- %s: %s\n", s.Path, s.Reason)
		}
	}
	if len(rep.Failed) > 0 {
		fmt.Fprintln(r.out, "\nFailed:")
		for _, f := range rep.Failed {
			r.bad.Fprintf(r.out, "- %s: %v\n", f.Path, f.Err)
		}
	}
	return nil
}

type refView struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type matchView struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

type similarView struct {
	Reference refView        `json:"reference"`
	Metric    string         `json:"metric"`
	Strategy  index.Strategy `json:"strategy,omitempty"`
	Matches   []matchView    `json:"matches"`
}

// pathOf resolves an identifier to its recorded path.
type pathOf func(id string) string

func similarFromResult(ref refView, res *index.QueryResult, path pathOf) similarView {
	v := similarView{Reference: ref, Metric: string(res.Metric), Strategy: res.Strategy, Matches: []matchView{}}
	for i, m := range res.Matches {
		v.Matches = append(v.Matches, matchView{Rank: i + 1, ID: m.ID, Path: path(m.ID), Distance: m.Distance, Similarity: m.Similarity})
	}
	return v
}

func similarFromNeighbors(ref refView, metric string, neighbors []catalog.Neighbor, similarity func(float64) float64) similarView {
	v := similarView{Reference: ref, Metric: metric, Matches: []matchView{}}
	for i, n := range neighbors {
		v.Matches = append(v.Matches, matchView{Rank: i + 1, ID: n.ID, Path: n.Path, Distance: n.Distance, Similarity: similarity(n.Distance)})
	}
	return v
}

// Similar renders a ranked similarity report.
func (r *renderer) Similar(v similarView) error {
	if r.asJSON {
		return r.json(v)
	}
	r.title("Similarity Report")
	fmt.Fprintln(r.out, "Reference Image:")
	fmt.Fprintf(r.out, "- ID: %s\n", v.Reference.ID)
	if v.Reference.Path != "" {
		fmt.Fprintf(r.out, "- Path: %s\n", v.Reference.Path)
	}
	strategy := ""
	if v.Strategy != "" {
		strategy = ", " + string(v.Strategy)
	}
	fmt.Fprintf(r.out, "\nSimilar Images (%s%s):\n", v.Metric, strategy)
	fmt.Fprintln(r.out, strings.Repeat("-", 40))
	for _, m := range v.Matches {
		fmt.Fprintf(r.out, "%d. %s  ", m.Rank, m.ID)
		c := r.warn
		if m.ID == v.Reference.ID {
			c = r.ok
		}
		c.Fprintf(r.out, "similarity %.4f", m.Similarity)
		r.dim.Fprintf(r.out, "  distance %.4f\n", m.Distance)
		if m.Path != "" {
			fmt.Fprintf(r.out, "   Full path: %s\n", m.Path)
		}
	}
	return nil
}
