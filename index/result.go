package index

import "github.com/viant/imagespider/vector"

// Match is one ranked neighbour.
type Match struct {
	ID         string  `json:"id"`
	Seq        uint64  `json:"seq"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// QueryResult lists matches by ascending distance. Equal distances are
// ordered by ascending Seq and no ID appears twice.
type QueryResult struct {
	Metric   vector.Metric `json:"metric"`
	Strategy Strategy      `json:"strategy"`
	Matches  []Match       `json:"matches"`
}

// IDs returns the matched identifiers in rank order.
func (r *QueryResult) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.ID
	}
	return ids
}

// Top returns the best match, or false for an empty result.
func (r *QueryResult) Top() (Match, bool) {
	if r == nil || len(r.Matches) == 0 {
		return Match{}, false
	}
	return r.Matches[0], true
}
