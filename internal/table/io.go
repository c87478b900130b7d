package table

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// Format selects a table codec.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatBIOM Format = "biom"
)

// ParseFormat maps a config or flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTSV:
		return FormatTSV, nil
	case FormatBIOM:
		return FormatBIOM, nil
	}
	return "", errors.NewValidationError("unknown table format").WithField("format").WithValue(s)
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	hdf5Magic = []byte("\x89HDF")
)

// Read decodes a table, sniffing the encoding: gzip is transparently
// decompressed, a leading '{' selects BIOM JSON and anything else is read
// as delimited text. HDF5 BIOM files are rejected.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4)

	if bytes.HasPrefix(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.NewSerializationError("invalid gzip stream", err).WithFormat("gzip")
		}
		defer func() { _ = zr.Close() }()
		return Read(zr)
	}
	if bytes.HasPrefix(head, hdf5Magic) {
		return nil, errors.NewSerializationError(
			"HDF5 BIOM tables are not supported; convert with 'biom convert --to-json'",
			errors.ErrUnsupportedFormat,
		).WithFormat("biom")
	}

	first, err := firstNonSpace(br)
	if err != nil {
		return nil, errors.NewSerializationError("empty table", errors.ErrMalformedInput)
	}
	if first == '{' {
		return ReadBIOM(br)
	}
	return ReadTSV(br)
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for n := 1; ; n++ {
		buf, err := br.Peek(n)
		if len(buf) < n {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		switch c := buf[n-1]; c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return c, nil
		}
	}
}

// ReadFile opens path and decodes it with Read. Errors carry the path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewSerializationError("failed to open table", err).WithPath(path)
	}
	defer func() { _ = f.Close() }()

	t, err := Read(f)
	if err != nil {
		var serr *errors.SerializationError
		if errors.As(err, &serr) && serr.Path == "" {
			serr.Path = path
			return nil, serr
		}
		return nil, err
	}
	return t, nil
}

// WriteOptions controls WriteFile.
type WriteOptions struct {
	Format   Format
	Compress bool
	BIOM     BIOMOptions
}

// Extension returns the file suffix WriteFile uses for opts.
func (o WriteOptions) Extension() string {
	ext := ".tsv"
	if o.Format == FormatBIOM {
		ext = ".biom"
	}
	if o.Compress {
		ext += ".gz"
	}
	return ext
}

// WriteFile encodes t to path, replacing any existing file.
func WriteFile(path string, t *Table, opts WriteOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewSerializationError("failed to create table file", err).WithPath(path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.NewSerializationError("failed to close table file", cerr).WithPath(path)
		}
	}()

	var w io.Writer = f
	var zw *gzip.Writer
	if opts.Compress {
		zw = gzip.NewWriter(f)
		w = zw
	}

	switch opts.Format {
	case FormatBIOM:
		err = WriteBIOM(w, t, opts.BIOM)
	case FormatTSV, "":
		err = WriteTSV(w, t)
	default:
		err = fmt.Errorf("unknown table format %q: %w", opts.Format, errors.ErrUnsupportedFormat)
	}
	if err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return errors.NewSerializationError("failed to finish gzip stream", err).WithPath(path)
		}
	}
	return nil
}
