package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	rerrors "github.com/Iron-Ham/picrust2-runner/internal/errors"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	return mustNew(t,
		[]string{"ASV1", "ASV2"},
		[]string{"S1", "S2", "S3"},
		[][]float64{{10, 0, 3}, {0, 7, 1}},
	)
}

func TestBIOM_RoundTrip(t *testing.T) {
	in := sampleTable(t)

	var buf bytes.Buffer
	opts := BIOMOptions{ID: "test", GeneratedBy: "picrust2-runner", Date: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := WriteBIOM(&buf, in, opts); err != nil {
		t.Fatalf("WriteBIOM() error = %v", err)
	}

	text := buf.String()
	for _, want := range []string{
		`"matrix_type":"sparse"`,
		`"matrix_element_type":"int"`,
		`"generated_by":"picrust2-runner"`,
		`"date":"2024-01-02T03:04:05"`,
		`"shape":[2,3]`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("BIOM output missing %s:\n%s", want, text)
		}
	}

	out, err := ReadBIOM(&buf)
	if err != nil {
		t.Fatalf("ReadBIOM() error = %v", err)
	}
	if !in.Equal(out) {
		t.Errorf("round trip changed the table: %v", out.Row(0))
	}
}

func TestReadBIOM_Dense(t *testing.T) {
	doc := `{"id":null,"format":"Biological Observation Matrix 1.0.0","type":"OTU table",
"rows":[{"id":"o1","metadata":null},{"id":"o2","metadata":null}],
"columns":[{"id":"A","metadata":null}],
"matrix_type":"dense","matrix_element_type":"float","shape":[2,1],"data":[[1.5],[2]]}`

	tbl, err := ReadBIOM(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadBIOM() error = %v", err)
	}
	if v, _ := tbl.Lookup("o1", "A"); v != 1.5 {
		t.Errorf("Lookup(o1, A) = %v, want 1.5", v)
	}
}

func TestReadBIOM_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"rows": [`},
		{"bad matrix type", `{"rows":[],"columns":[],"matrix_type":"csr","data":[]}`},
		{"index out of range", `{"rows":[{"id":"a"}],"columns":[{"id":"S"}],"matrix_type":"sparse","data":[[0,3,1]]}`},
		{"short entry", `{"rows":[{"id":"a"}],"columns":[{"id":"S"}],"matrix_type":"sparse","data":[[0,0]]}`},
		{"shape mismatch", `{"rows":[{"id":"a"}],"columns":[{"id":"S"}],"shape":[5,5],"matrix_type":"sparse","data":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBIOM(strings.NewReader(tt.doc))
			if !errors.Is(err, rerrors.ErrMalformedInput) {
				t.Errorf("ReadBIOM() error = %v, want ErrMalformedInput", err)
			}
		})
	}
}

func TestReadTSV(t *testing.T) {
	text := "# Constructed from biom file\n" +
		"#OTU ID\tS1\tS2\ttaxonomy\n" +
		"ASV1\t1\t2\tk__Bacteria\n" +
		"\n" +
		"ASV2\t0.5\t0\tk__Archaea\n"

	tbl, err := ReadTSV(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ReadTSV() error = %v", err)
	}
	if got := tbl.Label(); got != "#OTU ID" {
		t.Errorf("Label() = %q, want %q", got, "#OTU ID")
	}
	if diff := cmp.Diff([]string{"S1", "S2"}, tbl.SampleIDs()); diff != "" {
		t.Errorf("SampleIDs() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.5, 0}, tbl.Row(1)); diff != "" {
		t.Errorf("Row(1) mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTSV_Errors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLine int
	}{
		{"non numeric", "function\tS1\nK1\tabc\n", 2},
		{"ragged row", "function\tS1\tS2\nK1\t1\t2\nK2\t1\n", 3},
		{"no header", "# only a comment\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTSV(strings.NewReader(tt.text))
			var serr *rerrors.SerializationError
			if !errors.As(err, &serr) {
				t.Fatalf("ReadTSV() error = %v, want *SerializationError", err)
			}
			if serr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", serr.Line, tt.wantLine)
			}
		})
	}
}

func TestWriteTSV(t *testing.T) {
	tbl := mustNew(t, []string{"K1", "K2"}, []string{"S1", "S2"}, [][]float64{{1, 0.25}, {0, 3}})
	tbl.SetLabel("function")

	var buf bytes.Buffer
	if err := WriteTSV(&buf, tbl); err != nil {
		t.Fatalf("WriteTSV() error = %v", err)
	}
	want := "function\tS1\tS2\nK1\t1\t0.25\nK2\t0\t3\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteTSV() mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	tbl.SetLabel("")
	_ = WriteTSV(&buf, tbl)
	if !strings.HasPrefix(buf.String(), DefaultLabel+"\t") {
		t.Errorf("unlabelled table should use %q, got %q", DefaultLabel, buf.String())
	}
}

func TestRead_Sniffing(t *testing.T) {
	tsv := "function\tS1\nK1\t4\n"

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(tsv))
	_ = zw.Close()

	var biom bytes.Buffer
	if err := WriteBIOM(&biom, mustNew(t, []string{"K1"}, []string{"S1"}, [][]float64{{4}}), BIOMOptions{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"tsv", []byte(tsv)},
		{"gzip tsv", gz.Bytes()},
		{"biom json", biom.Bytes()},
		{"biom json with leading space", append([]byte("\n  "), biom.Bytes()...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Read(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if v, ok := tbl.Lookup("K1", "S1"); !ok || v != 4 {
				t.Errorf("Lookup(K1, S1) = (%v, %v), want (4, true)", v, ok)
			}
		})
	}
}

func TestRead_RejectsHDF5(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("\x89HDF\r\n\x1a\n....")))
	if !errors.Is(err, rerrors.ErrUnsupportedFormat) {
		t.Fatalf("Read() error = %v, want ErrUnsupportedFormat", err)
	}
	if !strings.Contains(err.Error(), "biom convert") {
		t.Errorf("error should suggest conversion: %v", err)
	}
}

func TestRead_Empty(t *testing.T) {
	if _, err := Read(strings.NewReader("  \n")); !errors.Is(err, rerrors.ErrMalformedInput) {
		t.Errorf("Read() error = %v, want ErrMalformedInput", err)
	}
}

func TestWriteFile_ReadFile(t *testing.T) {
	in := sampleTable(t)
	in.SetLabel("pathway")
	dir := t.TempDir()

	tests := []WriteOptions{
		{Format: FormatTSV},
		{Format: FormatTSV, Compress: true},
		{Format: FormatBIOM},
		{Format: FormatBIOM, Compress: true},
	}

	for _, opts := range tests {
		t.Run(opts.Extension(), func(t *testing.T) {
			path := filepath.Join(dir, "out"+opts.Extension())
			if err := WriteFile(path, in, opts); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			out, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if !in.Equal(out) {
				t.Error("table changed across WriteFile/ReadFile")
			}
		})
	}
}

func TestReadFile_ErrorCarriesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tsv")
	if err := os.WriteFile(path, []byte("function\tS1\nK1\tx\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadFile(path)
	var serr *rerrors.SerializationError
	if !errors.As(err, &serr) || serr.Path != path {
		t.Fatalf("ReadFile() error = %v, want SerializationError with path", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("BIOM"); err != nil || f != FormatBIOM {
		t.Errorf("ParseFormat(BIOM) = (%q, %v)", f, err)
	}
	if _, err := ParseFormat("hdf5"); !errors.Is(err, rerrors.ErrInvalidInput) {
		t.Errorf("ParseFormat(hdf5) error = %v, want ErrInvalidInput", err)
	}
}
