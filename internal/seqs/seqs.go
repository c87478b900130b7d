// Package seqs models the representative sequence set handed to sequence
// placement and its FASTA encoding.
package seqs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/Iron-Ham/picrust2-runner/internal/errors"
)

// LineWidth is the number of residues per FASTA line when writing.
const LineWidth = 80

// Record is one named nucleotide sequence.
type Record struct {
	ID       string
	Sequence string
}

// Set is an ordered collection of records keyed by feature id.
type Set struct {
	records []Record
	index   map[string]int
}

// New builds a Set. Ids must be unique and non-empty and every sequence must
// hold at least one residue.
func New(records []Record) (*Set, error) {
	s := &Set{index: make(map[string]int, len(records))}
	for _, r := range records {
		if err := s.add(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromMap builds a Set from id -> sequence pairs, ordered by id.
func FromMap(m map[string]string) (*Set, error) {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	records := make([]Record, len(ids))
	for i, id := range ids {
		records[i] = Record{ID: id, Sequence: m[id]}
	}
	return New(records)
}

func (s *Set) add(r Record) error {
	if r.ID == "" {
		return malformed(fmt.Sprintf("empty sequence id at position %d", len(s.records)))
	}
	if strings.ContainsAny(r.ID, " \t\r\n") {
		return malformed(fmt.Sprintf("sequence id %q contains whitespace", r.ID))
	}
	if _, dup := s.index[r.ID]; dup {
		return malformed(fmt.Sprintf("duplicate sequence id %q", r.ID))
	}
	if r.Sequence == "" {
		return malformed(fmt.Sprintf("sequence %q is empty", r.ID))
	}
	s.index[r.ID] = len(s.records)
	s.records = append(s.records, r)
	return nil
}

func malformed(msg string) error {
	return errors.NewSerializationError(msg, errors.ErrMalformedInput).WithFormat("fasta")
}

// Len returns the number of records.
func (s *Set) Len() int {
	return len(s.records)
}

// Records returns a copy of the records in order.
func (s *Set) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// IDs returns the record ids in order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.records))
	for i, r := range s.records {
		ids[i] = r.ID
	}
	return ids
}

// Get returns the sequence for id.
func (s *Set) Get(id string) (string, bool) {
	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.records[i].Sequence, true
}

// ReadFASTA parses FASTA text. The id is the header up to the first
// whitespace; any description is dropped.
func ReadFASTA(r io.Reader) (*Set, error) {
	template := linear.NewSeq("", nil, alphabet.DNAredundant)
	sc := seqio.NewScanner(fasta.NewReader(r, template))

	set := &Set{index: make(map[string]int)}
	for sc.Next() {
		ls, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return nil, malformed(fmt.Sprintf("unexpected sequence type %T", sc.Seq()))
		}
		residues := make([]byte, len(ls.Seq))
		for i, l := range ls.Seq {
			residues[i] = byte(l)
		}
		if err := set.add(Record{ID: ls.ID, Sequence: string(residues)}); err != nil {
			return nil, err
		}
	}
	if err := sc.Error(); err != nil {
		return nil, errors.NewSerializationError("failed to parse FASTA", errors.Join(errors.ErrMalformedInput, err)).WithFormat("fasta")
	}
	return set, nil
}

// WriteFASTA writes every record with LineWidth residues per line.
func WriteFASTA(w io.Writer, s *Set) error {
	bw := bufio.NewWriter(w)
	fw := fasta.NewWriter(bw, LineWidth)
	for _, r := range s.records {
		ls := linear.NewSeq(r.ID, alphabet.BytesToLetters([]byte(r.Sequence)), alphabet.DNAredundant)
		if _, err := fw.Write(ls); err != nil {
			return errors.NewSerializationError(fmt.Sprintf("failed to write sequence %q", r.ID), err).WithFormat("fasta")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.NewSerializationError("failed to flush sequences", err).WithFormat("fasta")
	}
	return nil
}

// ReadFile parses the FASTA file at path.
func ReadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewSerializationError("failed to open sequences", err).WithFormat("fasta").WithPath(path)
	}
	defer func() { _ = f.Close() }()

	s, err := ReadFASTA(f)
	if err != nil {
		var serr *errors.SerializationError
		if errors.As(err, &serr) {
			serr.Path = path
		}
		return nil, err
	}
	return s, nil
}

// WriteFile writes s to path as FASTA.
func WriteFile(path string, s *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewSerializationError("failed to create sequence file", err).WithFormat("fasta").WithPath(path)
	}
	if err := WriteFASTA(f, s); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewSerializationError("failed to close sequence file", err).WithFormat("fasta").WithPath(path)
	}
	return nil
}
