package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	rerrors "github.com/Iron-Ham/picrust2-runner/internal/errors"
)

func TestLookupDialect(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "current", false},
		{"current", "current", false},
		{"legacy", "legacy", false},
		{"v1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LookupDialect(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LookupDialect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, rerrors.ErrInvalidInput) {
					t.Errorf("error should match ErrInvalidInput: %v", err)
				}
				return
			}
			if d.Name != tt.want {
				t.Errorf("Name = %q, want %q", d.Name, tt.want)
			}
		})
	}
}

func TestDialect_Paths(t *testing.T) {
	tests := []struct {
		dialect Dialect
		call    func(Dialect) string
		want    string
	}{
		{Current, func(d Dialect) string { return d.Table(d.Predicted(MarkerTrait)) }, "picrust2_out/marker_predicted_and_nsti.tsv.gz"},
		{Legacy, func(d Dialect) string { return d.Table(d.Predicted(MarkerTrait)) }, "picrust2_out/16S_predicted.tsv"},
		{Current, func(d Dialect) string { return d.OutputArg(d.Predicted("EC")) }, "picrust2_out/EC_predicted.tsv.gz"},
		{Legacy, func(d Dialect) string { return d.OutputArg(d.Predicted("EC")) }, "picrust2_out/EC_predicted"},
		{Current, func(d Dialect) string { return d.Metagenome("KO") }, "picrust2_out/KO_metagenome_out/pred_metagenome_unstrat.tsv.gz"},
		{Legacy, func(d Dialect) string { return d.Metagenome("KO") }, "picrust2_out/KO_metagenome_out/pred_metagenome_unstrat.tsv"},
		{Current, func(d Dialect) string { return d.PathwayAbundance() }, "picrust2_out/pathways_out/path_abun_unstrat.tsv.gz"},
		{Legacy, func(d Dialect) string { return d.PathwayCoverage() }, "picrust2_out/pathways_out/path_cov_unstrat.tsv"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.call(tt.dialect); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialectNames(t *testing.T) {
	if diff := cmp.Diff([]string{"current", "legacy"}, DialectNames()); diff != "" {
		t.Errorf("DialectNames() mismatch (-want +got):\n%s", diff)
	}
	if IsValidDialect("bogus") {
		t.Error("IsValidDialect(bogus) = true")
	}
}

func TestArgs(t *testing.T) {
	got := NewArgs().
		Flag("-i", "EC").
		Int("-p", 4).
		Float("--max_nsti", 2).
		Float("-e", 0.5).
		Switch("-n").
		SwitchIf(false, "--skip_norm").
		SwitchIf(true, "--verbose").
		FlagIf(false, "-r", "ref").
		FlagIf(true, "-t", "epa-ng").
		List()

	want := []string{"-i", "EC", "-p", "4", "--max_nsti", "2", "-e", "0.5", "-n", "--verbose", "-t", "epa-ng"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestCommand_String(t *testing.T) {
	c := Command{Program: ProgramHSP, Args: []string{"-i", "16S", "-n"}}
	if got := c.String(); got != "hsp.py -i 16S -n" {
		t.Errorf("String() = %q", got)
	}
}

func TestResolver_Check(t *testing.T) {
	installed := map[string]bool{ProgramHSP: true, ProgramMetagenome: true}
	r := &Resolver{LookPath: func(name string) (string, error) {
		if installed[name] {
			return "/opt/picrust2/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}}

	if err := r.Check([]string{ProgramHSP, ProgramMetagenome, ProgramHSP}); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	err := r.Check([]string{ProgramPathways, ProgramHSP, ProgramPlaceSeqs})
	if !errors.Is(err, rerrors.ErrProgramNotFound) {
		t.Fatalf("Check() error = %v, want ErrProgramNotFound", err)
	}
	var depErr *rerrors.DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("Check() error should be a DependencyError")
	}
	if diff := cmp.Diff([]string{ProgramPathways, ProgramPlaceSeqs}, depErr.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if !rerrors.IsUserFacing(err) {
		t.Error("missing-program error should be user facing")
	}
}

func TestResolver_BinDir(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, ProgramHSP)
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{BinDir: dir, LookPath: func(string) (string, error) { return "", exec.ErrNotFound }}
	got, err := r.Resolve(ProgramHSP)
	if err != nil || got != script {
		t.Errorf("Resolve() = (%q, %v), want %q", got, err, script)
	}
	if _, err := r.Resolve(ProgramPathways); err == nil {
		t.Error("Resolve() should fall back to LookPath and fail")
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecExecutor_Run(t *testing.T) {
	requireShell(t)
	defer goleak.VerifyNone(t)
	dir := t.TempDir()

	tests := []struct {
		name       string
		script     string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"success", "echo out; echo err >&2", 0, "out\n", "err\n"},
		{"failure", "echo boom >&2; exit 3", 3, "", "boom\n"},
		{"runs in dir", "pwd", 0, dir + "\n", ""},
	}

	e := NewExecExecutor("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Run(context.Background(), Command{Program: "sh", Args: []string{"-c", tt.script}, Dir: dir})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if string(res.Stdout) != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if string(res.Stderr) != tt.wantStderr {
				t.Errorf("Stderr = %q, want %q", res.Stderr, tt.wantStderr)
			}
		})
	}
}

func TestExecExecutor_NotFound(t *testing.T) {
	_, err := NewExecExecutor("").Run(context.Background(), Command{Program: "definitely-not-a-picrust2-program"})
	if !errors.Is(err, rerrors.ErrProgramNotFound) {
		t.Fatalf("Run() error = %v, want ErrProgramNotFound", err)
	}
}

func TestExecExecutor_BinDirSkipsNonExecutable(t *testing.T) {
	bin := t.TempDir()
	program := "not-executable-picrust2-tool.py"
	if err := os.WriteFile(filepath.Join(bin, program), []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewExecExecutor(bin).Run(context.Background(), Command{Program: program})
	if !errors.Is(err, rerrors.ErrProgramNotFound) {
		t.Fatalf("Run() error = %v, want ErrProgramNotFound", err)
	}
}

func TestExecExecutor_Canceled(t *testing.T) {
	requireShell(t)
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := NewExecExecutor("").Run(ctx, Command{Program: "sh", Args: []string{"-c", "sleep 5"}})
	if !errors.Is(err, rerrors.ErrCanceled) {
		t.Fatalf("Run() error = %v, want ErrCanceled", err)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}

func TestExecExecutor_BinDir(t *testing.T) {
	requireShell(t)
	bin := t.TempDir()
	script := filepath.Join(bin, "fake_tool.py")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"$PATH\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := NewExecExecutor(bin).Run(context.Background(), Command{Program: "fake_tool.py"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := string(res.Stdout); len(got) < len(bin) || got[:len(bin)] != bin {
		t.Errorf("child PATH = %q, want prefix %q", got, bin)
	}
}
