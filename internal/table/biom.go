package table

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

const (
	biomFormat    = "Biological Observation Matrix 1.0.0"
	biomFormatURL = "http://biom-format.org"
)

// biomDocument is the BIOM 1.0 JSON layout.
type biomDocument struct {
	ID                string      `json:"id"`
	Format            string      `json:"format"`
	FormatURL         string      `json:"format_url"`
	Type              string      `json:"type"`
	GeneratedBy       string      `json:"generated_by"`
	Date              string      `json:"date"`
	Rows              []biomAxis  `json:"rows"`
	Columns           []biomAxis  `json:"columns"`
	MatrixType        string      `json:"matrix_type"`
	MatrixElementType string      `json:"matrix_element_type"`
	Shape             [2]int      `json:"shape"`
	Data              [][]float64 `json:"data"`
}

type biomAxis struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
}

// BIOMOptions controls the document header written by WriteBIOM.
type BIOMOptions struct {
	ID          string
	GeneratedBy string
	Date        time.Time // zero means now
}

// WriteBIOM encodes t as a sparse BIOM 1.0 JSON document.
func WriteBIOM(w io.Writer, t *Table, opts BIOMOptions) error {
	date := opts.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	doc := biomDocument{
		ID:                opts.ID,
		Format:            biomFormat,
		FormatURL:         biomFormatURL,
		Type:              "OTU table",
		GeneratedBy:       opts.GeneratedBy,
		Date:              date.Format("2006-01-02T15:04:05"),
		MatrixType:        "sparse",
		MatrixElementType: "float",
		Data:              [][]float64{},
	}
	if t.IsInteger() {
		doc.MatrixElementType = "int"
	}

	rows, cols := t.Shape()
	doc.Shape = [2]int{rows, cols}
	doc.Rows = make([]biomAxis, rows)
	for i, id := range t.obsIDs {
		doc.Rows[i] = biomAxis{ID: id}
	}
	doc.Columns = make([]biomAxis, cols)
	for j, id := range t.sampleIDs {
		doc.Columns[j] = biomAxis{ID: id}
	}
	t.EachNonZero(func(i, j int, v float64) {
		doc.Data = append(doc.Data, []float64{float64(i), float64(j), v})
	})

	enc := json.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return errors.NewSerializationError("failed to encode BIOM document", err).WithFormat("biom")
	}
	return nil
}

// ReadBIOM decodes a BIOM 1.0 JSON document in sparse or dense layout.
func ReadBIOM(r io.Reader) (*Table, error) {
	var doc biomDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, biomErr(fmt.Sprintf("invalid JSON: %v", err))
	}

	rows, cols := len(doc.Rows), len(doc.Columns)
	if doc.Shape != [2]int{0, 0} && doc.Shape != [2]int{rows, cols} {
		return nil, biomErr(fmt.Sprintf("shape %v does not match %d rows x %d columns", doc.Shape, rows, cols))
	}

	values := make([][]float64, rows)
	for i := range values {
		values[i] = make([]float64, cols)
	}

	switch doc.MatrixType {
	case "sparse":
		for n, entry := range doc.Data {
			if len(entry) != 3 {
				return nil, biomErr(fmt.Sprintf("sparse entry %d has %d fields, want 3", n, len(entry)))
			}
			i, j, ok := cellIndex(entry[0], entry[1], rows, cols)
			if !ok {
				return nil, biomErr(fmt.Sprintf("sparse entry %d index (%v, %v) out of range", n, entry[0], entry[1]))
			}
			values[i][j] += entry[2]
		}
	case "dense":
		if len(doc.Data) != rows {
			return nil, biomErr(fmt.Sprintf("dense matrix has %d rows, want %d", len(doc.Data), rows))
		}
		for i, row := range doc.Data {
			if len(row) != cols {
				return nil, biomErr(fmt.Sprintf("dense row %d has %d values, want %d", i, len(row), cols))
			}
			copy(values[i], row)
		}
	default:
		return nil, biomErr(fmt.Sprintf("unknown matrix_type %q", doc.MatrixType))
	}

	obsIDs := make([]string, rows)
	for i, axis := range doc.Rows {
		obsIDs[i] = axis.ID
	}
	sampleIDs := make([]string, cols)
	for j, axis := range doc.Columns {
		sampleIDs[j] = axis.ID
	}

	t, err := New(obsIDs, sampleIDs, values)
	if err != nil {
		return nil, err
	}
	t.SetLabel(DefaultLabel)
	return t, nil
}

func cellIndex(fi, fj float64, rows, cols int) (int, int, bool) {
	if fi != math.Trunc(fi) || fj != math.Trunc(fj) {
		return 0, 0, false
	}
	i, j := int(fi), int(fj)
	if i < 0 || i >= rows || j < 0 || j >= cols {
		return 0, 0, false
	}
	return i, j, true
}

func biomErr(msg string) error {
	return errors.NewSerializationError(msg, errors.ErrMalformedInput).WithFormat("biom")
}
