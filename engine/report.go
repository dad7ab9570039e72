package engine

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/viant/imagespider/extractor"
	"github.com/viant/imagespider/index"
)

// ErrEmptyCollection is returned by FindSimilar when nothing is indexed.
var ErrEmptyCollection = errors.New("engine: empty collection")

// Status is the terminal state of a Record.
type Status string

const (
	// StatusOK means the embedding is in the store.
	StatusOK Status = "ok"
	// StatusSkipped means decoding or embedding failed; the batch went on.
	StatusSkipped Status = "skipped"
	// StatusFailed means the store rejected the embedding.
	StatusFailed Status = "failed"
)

// Record tracks one submitted path.
type Record struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Seq    uint64 `json:"seq"`
}

// Skip is a path excluded for a recoverable reason.
type Skip struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Failure is a path rejected by a structural check.
type Failure struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		ID    string `json:"id"`
		Path  string `json:"path"`
		Error string `json:"error"`
	}{f.ID, f.Path, msg})
}

// Report summarises an indexing run. Succeeded, Skipped and Failed are
// disjoint and add up to Total.
type Report struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Skipped   []Skip           `json:"skipped"`
	Failed    []Failure        `json:"failed"`
	Processed []string         `json:"processed"`
	IndexSize int              `json:"indexSize"`
	Strategy  index.Strategy   `json:"strategy"`
	Model     string           `json:"model"`
	Device    extractor.Device `json:"device"`
	Root      string           `json:"root,omitempty"`
	StartedAt time.Time        `json:"startedAt"`
	Elapsed   time.Duration    `json:"elapsed"`
}
