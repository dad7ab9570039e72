package catalog

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/viant/imagespider/vector"
)

// SQL function names, one per metric. Both take two embedding BLOBs and
// return the metric distance.
const (
	FuncCosineDistance = "img_cosine_distance"
	FuncL2Distance     = "img_l2_distance"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions makes the distance functions available to every
// connection opened afterwards.
func registerFunctions() error {
	registerOnce.Do(func() {
		if err := sqlite.RegisterDeterministicScalarFunction(FuncCosineDistance, 2, distanceImpl(vector.Cosine)); err != nil {
			registerErr = err
			return
		}
		registerErr = sqlite.RegisterDeterministicScalarFunction(FuncL2Distance, 2, distanceImpl(vector.Euclidean))
	})
	return registerErr
}

func distanceFunc(metric vector.Metric) string {
	if metric == vector.Euclidean {
		return FuncL2Distance
	}
	return FuncCosineDistance
}

func distanceImpl(metric vector.Metric) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	name := distanceFunc(metric)
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asEmbedding(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asEmbedding(args[1])
		if err != nil {
			return nil, err
		}
		if a == nil || b == nil {
			return nil, nil
		}
		if len(a) != len(b) {
			return nil, fmt.Errorf("%s: dimension mismatch %d vs %d", name, len(a), len(b))
		}
		return metric.Distance(a, b), nil
	}
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodeEmbedding(v)
	default:
		return nil, fmt.Errorf("catalog: unsupported argument type %T for embedding; want BLOB", arg)
	}
}

// Neighbor is one row ranked by Nearest.
type Neighbor struct {
	Seq      uint64
	ID       string
	Path     string
	Distance float64
}

// Nearest ranks the stored entries against query inside SQLite, without
// building an index. Ties are ordered by sequence number.
func (c *Catalog) Nearest(ctx context.Context, query []float32, metric vector.Metric, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("catalog: k must be positive, got %d", k)
	}
	blob, err := vector.EncodeEmbedding(query)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT seq, id, path, %s(vector, ?) AS distance FROM entries ORDER BY distance, seq LIMIT ?`, distanceFunc(metric))
	rows, err := c.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, fmt.Errorf("catalog: nearest: %w", err)
	}
	defer rows.Close()
	var out []Neighbor
	for rows.Next() {
		var (
			n   Neighbor
			seq int64
		)
		if err := rows.Scan(&seq, &n.ID, &n.Path, &n.Distance); err != nil {
			return nil, err
		}
		n.Seq = uint64(seq)
		out = append(out, n)
	}
	return out, rows.Err()
}
