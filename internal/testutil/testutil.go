// Package testutil provides fixtures and a fake PICRUSt2 toolchain for
// package tests.
package testutil

import (
	"os/exec"
	"testing"

	"github.com/Iron-Ham/picrust2-runner/internal/newick"
	"github.com/Iron-Ham/picrust2-runner/internal/seqs"
	"github.com/Iron-Ham/picrust2-runner/internal/table"
	"github.com/Iron-Ham/picrust2-runner/internal/toolchain"
)

// Feature and sample ids used by the fixtures.
var (
	FixtureFeatures = []string{"ASV1", "ASV2", "ASV3"}
	FixtureSamples  = []string{"S1", "S2", "S3"}
)

// SampleTable returns a 3 feature x 3 sample count table.
func SampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(FixtureFeatures, FixtureSamples, [][]float64{
		{10, 0, 4},
		{3, 8, 0},
		{0, 2, 6},
	})
	if err != nil {
		t.Fatalf("failed to build fixture table: %v", err)
	}
	return tbl
}

// SampleTree returns a placed tree whose tips are the fixture features.
func SampleTree(t *testing.T) *newick.Tree {
	t.Helper()
	tree, err := newick.ParseString("((ASV1:0.1,ASV2:0.2):0.05,ASV3:0.3);")
	if err != nil {
		t.Fatalf("failed to build fixture tree: %v", err)
	}
	return tree
}

// SampleSeqs returns one sequence per fixture feature.
func SampleSeqs(t *testing.T) *seqs.Set {
	t.Helper()
	s, err := seqs.New([]seqs.Record{
		{ID: "ASV1", Sequence: "TACGGAGGGTGCAAGCGTTAATCGGAATTACTGGGCGTAAAG"},
		{ID: "ASV2", Sequence: "TACGTAGGTGGCAAGCGTTGTCCGGATTTATTGGGCGTAAAG"},
		{ID: "ASV3", Sequence: "TACGGAGGATCCGAGCGTTATCCGGATTTATTGGGTTTAAAG"},
	})
	if err != nil {
		t.Fatalf("failed to build fixture sequences: %v", err)
	}
	return s
}

// LookPath returns a toolchain.LookPathFunc that only finds the named
// programs.
func LookPath(installed ...string) toolchain.LookPathFunc {
	set := make(map[string]bool, len(installed))
	for _, p := range installed {
		set[p] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return "/opt/picrust2/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}
}

// AllPrograms lists every program either dialect can call.
func AllPrograms() []string {
	return []string{
		toolchain.ProgramPlaceSeqs,
		toolchain.ProgramHSP,
		toolchain.ProgramMetagenome,
		toolchain.ProgramPathways,
		toolchain.ProgramMinPath,
	}
}
