package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/viant/imagespider/store"
	"github.com/viant/imagespider/vector"
)

// FormatVersion is written into every catalog.
const FormatVersion = "1"

// ErrEmpty is returned by Load and ReadHeader on a catalog that was never
// saved.
var ErrEmpty = errors.New("catalog: empty catalog")

// ModelMismatchError reports a catalog written by a different extractor.
type ModelMismatchError struct {
	Stored   string
	Expected string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("catalog: model mismatch: stored %q, expected %q", e.Stored, e.Expected)
}

// MetricMismatchError reports a catalog saved for a different metric.
type MetricMismatchError struct {
	Stored   vector.Metric
	Expected vector.Metric
}

func (e *MetricMismatchError) Error() string {
	return fmt.Sprintf("catalog: metric mismatch: stored %q, expected %q", e.Stored, e.Expected)
}

// Header describes a saved collection.
type Header struct {
	Model     string        `json:"model"`
	Dimension int           `json:"dimension"`
	Metric    vector.Metric `json:"metric"`
	Root      string        `json:"root,omitempty"`
	SavedAt   time.Time     `json:"savedAt"`
}

// Entry is one persisted embedding.
type Entry struct {
	Seq    uint64
	ID     string
	Path   string
	Vector []float32
}

// Catalog wraps an open SQLite database.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog at dsn. Pass ":memory:" for a
// throwaway catalog.
func Open(dsn string) (*Catalog, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("catalog: create directory: %w", err)
		}
	}
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("catalog: register functions: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", dsn, err)
	}
	// every pooled connection to :memory: would see its own database
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// DB exposes the underlying database.
func (c *Catalog) DB() *sql.DB { return c.db }

func (c *Catalog) Close() error { return c.db.Close() }

// Save replaces the catalog content with h and entries in one transaction.
func (c *Catalog) Save(ctx context.Context, h Header, entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != h.Dimension {
			return &store.DimensionMismatchError{ID: e.ID, Expected: h.Dimension, Actual: len(e.Vector)}
		}
	}
	if h.SavedAt.IsZero() {
		h.SavedAt = time.Now().UTC()
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM entries`, `DELETE FROM metadata`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("catalog: clear: %w", err)
		}
	}
	meta := map[string]string{
		"version":   FormatVersion,
		"model":     h.Model,
		"dimension": strconv.Itoa(h.Dimension),
		"metric":    string(h.Metric),
		"root":      h.Root,
		"saved_at":  h.SavedAt.Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata(key, value) VALUES(?, ?)`, k, v); err != nil {
			return fmt.Errorf("catalog: metadata %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries(seq, id, path, vector) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		blob, err := vector.EncodeEmbedding(e.Vector)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, int64(e.Seq), e.ID, e.Path, blob); err != nil {
			return fmt.Errorf("catalog: insert %q: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// ReadHeader returns the saved header without loading entries.
func (c *Catalog) ReadHeader(ctx context.Context) (Header, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return Header{}, err
	}
	defer rows.Close()
	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Header{}, err
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return Header{}, err
	}
	if len(meta) == 0 {
		return Header{}, ErrEmpty
	}
	if v := meta["version"]; v != FormatVersion {
		return Header{}, fmt.Errorf("catalog: unsupported format version %q", v)
	}
	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil {
		return Header{}, fmt.Errorf("catalog: dimension: %w", err)
	}
	metric, err := vector.ParseMetric(meta["metric"])
	if err != nil {
		return Header{}, fmt.Errorf("catalog: %w", err)
	}
	h := Header{Model: meta["model"], Dimension: dim, Metric: metric, Root: meta["root"]}
	if ts := meta["saved_at"]; ts != "" {
		if h.SavedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return Header{}, fmt.Errorf("catalog: saved_at: %w", err)
		}
	}
	return h, nil
}

// Expect names what a caller requires of a catalog. Zero fields are not
// checked.
type Expect struct {
	Model     string
	Dimension int
	Metric    vector.Metric
}

// Check validates h against the expectation.
func (x Expect) Check(h Header) error {
	if x.Model != "" && h.Model != x.Model {
		return &ModelMismatchError{Stored: h.Model, Expected: x.Model}
	}
	if x.Dimension != 0 && h.Dimension != x.Dimension {
		return &store.DimensionMismatchError{ID: "catalog", Expected: x.Dimension, Actual: h.Dimension}
	}
	if x.Metric != "" && h.Metric != x.Metric {
		return &MetricMismatchError{Stored: h.Metric, Expected: x.Metric}
	}
	return nil
}

// Load validates the header against expect and returns the entries
// ordered by sequence number.
func (c *Catalog) Load(ctx context.Context, expect Expect) (Header, []Entry, error) {
	h, err := c.ReadHeader(ctx)
	if err != nil {
		return Header{}, nil, err
	}
	if err := expect.Check(h); err != nil {
		return Header{}, nil, err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT seq, id, path, vector FROM entries ORDER BY seq`)
	if err != nil {
		return Header{}, nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			seq  int64
			e    Entry
			blob []byte
		)
		if err := rows.Scan(&seq, &e.ID, &e.Path, &blob); err != nil {
			return Header{}, nil, err
		}
		if e.Vector, err = vector.DecodeEmbeddingDim(blob, h.Dimension); err != nil {
			return Header{}, nil, fmt.Errorf("catalog: entry %q: %w", e.ID, err)
		}
		e.Seq = uint64(seq)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Header{}, nil, err
	}
	return h, entries, nil
}
