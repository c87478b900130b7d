package table

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// maxLineBytes bounds a single line; wide tables have one column per sample.
const maxLineBytes = 64 << 20

// metadataColumns are header names that hold annotations, not samples.
var metadataColumns = map[string]bool{
	"description": true,
	"taxonomy":    true,
}

// ReadTSV parses tab-delimited text: optional "# ..." comment lines, a
// header whose first cell labels the id column, then one row per
// observation. Description and taxonomy columns are ignored.
func ReadTSV(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		label     string
		sampleIDs []string
		keep      []int // header column index of each sample
		width     int
		obsIDs    []string
		values    [][]float64
		lineNo    int
		haveHdr   bool
	)

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if !haveHdr {
			if line == "#" || strings.HasPrefix(line, "# ") {
				continue
			}
			cells := strings.Split(line, "\t")
			label = cells[0]
			width = len(cells)
			for k := 1; k < len(cells); k++ {
				name := strings.TrimSpace(cells[k])
				if metadataColumns[strings.ToLower(name)] {
					continue
				}
				sampleIDs = append(sampleIDs, name)
				keep = append(keep, k)
			}
			haveHdr = true
			continue
		}

		cells := strings.Split(line, "\t")
		if len(cells) != width {
			return nil, tsvErr(fmt.Sprintf("row has %d cells, header has %d", len(cells), width), lineNo)
		}
		row := make([]float64, len(keep))
		for n, k := range keep {
			v, err := strconv.ParseFloat(strings.TrimSpace(cells[k]), 64)
			if err != nil {
				return nil, tsvErr(fmt.Sprintf("non-numeric value %q", cells[k]), lineNo)
			}
			row[n] = v
		}
		obsIDs = append(obsIDs, strings.TrimSpace(cells[0]))
		values = append(values, row)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewSerializationError("failed to read table", err).WithFormat("tsv").WithLine(lineNo + 1)
	}
	if !haveHdr {
		return nil, tsvErr("missing header line", 0)
	}

	t, err := New(obsIDs, sampleIDs, values)
	if err != nil {
		return nil, err
	}
	t.SetLabel(label)
	return t, nil
}

func tsvErr(msg string, line int) error {
	return errors.NewSerializationError(msg, errors.ErrMalformedInput).WithFormat("tsv").WithLine(line)
}

// WriteTSV writes t as tab-delimited text with a single header line.
func WriteTSV(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)

	label := t.label
	if label == "" {
		label = DefaultLabel
	}
	bw.WriteString(label)
	for _, id := range t.sampleIDs {
		bw.WriteByte('\t')
		bw.WriteString(id)
	}
	bw.WriteByte('\n')

	for i, id := range t.obsIDs {
		bw.WriteString(id)
		for _, v := range t.Row(i) {
			bw.WriteByte('\t')
			bw.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return errors.NewSerializationError("failed to write table", err).WithFormat("tsv")
	}
	return nil
}
