// Package table holds the abundance table model shared by inputs and
// outputs of a pipeline call, plus its file codecs.
//
// A Table is oriented the way BIOM stores it: observations (features,
// gene families or pathways) are rows and samples are columns. Values are
// kept in a gonum dense matrix.
package table

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// DefaultLabel is the first header cell written for tables without a label.
const DefaultLabel = "#OTU ID"

// Table is an observations x samples matrix of non-negative values.
type Table struct {
	label     string
	obsIDs    []string
	sampleIDs []string
	obsIndex  map[string]int
	data      *mat.Dense // nil when either dimension is zero
}

// New builds a Table. values is indexed [observation][sample] and must match
// the id slices in shape. Ids must be unique and non-empty; values must be
// finite and non-negative.
func New(obsIDs, sampleIDs []string, values [][]float64) (*Table, error) {
	if len(values) != len(obsIDs) {
		return nil, malformed(fmt.Sprintf("got %d rows of values for %d observations", len(values), len(obsIDs)))
	}
	obsIndex, err := indexIDs("observation", obsIDs)
	if err != nil {
		return nil, err
	}
	if _, err := indexIDs("sample", sampleIDs); err != nil {
		return nil, err
	}

	t := &Table{
		obsIDs:    slices.Clone(obsIDs),
		sampleIDs: slices.Clone(sampleIDs),
		obsIndex:  obsIndex,
	}
	if len(obsIDs) == 0 || len(sampleIDs) == 0 {
		return t, nil
	}

	flat := make([]float64, 0, len(obsIDs)*len(sampleIDs))
	for i, row := range values {
		if len(row) != len(sampleIDs) {
			return nil, malformed(fmt.Sprintf("observation %q has %d values, want %d", obsIDs[i], len(row), len(sampleIDs)))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, malformed(fmt.Sprintf("invalid value %v for observation %q in sample %q", v, obsIDs[i], sampleIDs[j]))
			}
		}
		flat = append(flat, row...)
	}
	t.data = mat.NewDense(len(obsIDs), len(sampleIDs), flat)
	return t, nil
}

func indexIDs(kind string, ids []string) (map[string]int, error) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, malformed(fmt.Sprintf("empty %s id at position %d", kind, i))
		}
		if _, dup := index[id]; dup {
			return nil, malformed(fmt.Sprintf("duplicate %s id %q", kind, id))
		}
		index[id] = i
	}
	return index, nil
}

func malformed(msg string) error {
	return errors.NewSerializationError(msg, errors.ErrMalformedInput).WithFormat("table")
}

// Label returns the first header cell (e.g. "function" or "pathway").
func (t *Table) Label() string {
	return t.label
}

// SetLabel sets the first header cell used when writing delimited text.
func (t *Table) SetLabel(label string) {
	t.label = label
}

// Shape returns (observations, samples).
func (t *Table) Shape() (int, int) {
	return len(t.obsIDs), len(t.sampleIDs)
}

// ObservationIDs returns a copy of the row ids.
func (t *Table) ObservationIDs() []string {
	return slices.Clone(t.obsIDs)
}

// SampleIDs returns a copy of the column ids.
func (t *Table) SampleIDs() []string {
	return slices.Clone(t.sampleIDs)
}

// Value returns the value at observation i, sample j.
func (t *Table) Value(i, j int) float64 {
	return t.data.At(i, j)
}

// Lookup returns the value for an observation/sample id pair.
func (t *Table) Lookup(obsID, sampleID string) (float64, bool) {
	i, ok := t.obsIndex[obsID]
	if !ok {
		return 0, false
	}
	j := slices.Index(t.sampleIDs, sampleID)
	if j < 0 {
		return 0, false
	}
	return t.data.At(i, j), true
}

// Row returns a copy of observation i's values across samples.
func (t *Table) Row(i int) []float64 {
	if t.data == nil {
		return []float64{}
	}
	return mat.Row(nil, i, t.data)
}

// SampleTotals returns the column sums in sample order.
func (t *Table) SampleTotals() []float64 {
	totals := make([]float64, len(t.sampleIDs))
	if t.data == nil {
		return totals
	}
	for j := range totals {
		totals[j] = floats.Sum(mat.Col(nil, j, t.data))
	}
	return totals
}

// Total returns the sum of every value.
func (t *Table) Total() float64 {
	if t.data == nil {
		return 0
	}
	return mat.Sum(t.data)
}

// IsInteger reports whether every value is a whole number.
func (t *Table) IsInteger() bool {
	integral := true
	t.EachNonZero(func(_, _ int, v float64) {
		if v != math.Trunc(v) {
			integral = false
		}
	})
	return integral
}

// EachNonZero calls fn for every non-zero cell in row-major order.
func (t *Table) EachNonZero(fn func(i, j int, v float64)) {
	if t.data == nil {
		return
	}
	rows, cols := t.data.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := t.data.At(i, j); v != 0 {
				fn(i, j, v)
			}
		}
	}
}

// ExtraSamples returns the sample ids of t that are absent from ref, in t's
// order. An empty result means t's samples are a subset of ref's.
func (t *Table) ExtraSamples(ref *Table) []string {
	known := make(map[string]struct{}, len(ref.sampleIDs))
	for _, id := range ref.sampleIDs {
		known[id] = struct{}{}
	}
	var extra []string
	for _, id := range t.sampleIDs {
		if _, ok := known[id]; !ok {
			extra = append(extra, id)
		}
	}
	return extra
}

// Equal reports whether both tables have the same ids in the same order and
// identical values. Labels are ignored.
func (t *Table) Equal(o *Table) bool {
	return t.EqualApprox(o, 0)
}

// EqualApprox is Equal with an absolute/relative tolerance on values.
func (t *Table) EqualApprox(o *Table, tol float64) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !slices.Equal(t.obsIDs, o.obsIDs) || !slices.Equal(t.sampleIDs, o.sampleIDs) {
		return false
	}
	if t.data == nil || o.data == nil {
		return t.data == nil && o.data == nil
	}
	if tol == 0 {
		return mat.Equal(t.data, o.data)
	}
	return mat.EqualApprox(t.data, o.data, tol)
}

// SamplesSubsetOf reports whether every sample of t also appears in ref.
func (t *Table) SamplesSubsetOf(ref *Table) bool {
	return len(t.ExtraSamples(ref)) == 0
}
