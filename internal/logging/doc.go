// Package logging provides structured logging for picrust2-runner.
//
// It wraps Go's log/slog JSON handler so that every entry emitted while a
// pipeline call is in flight carries the run ID, the method and, inside the
// stage loop, the stage name. Entries can then be filtered per run with jq
// or any JSON log tool.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/picrust2-runner", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithRun(runID).WithMethod("full")
//	runLog.WithStage("hsp_marker").Info("stage finished", "duration_ms", 1520)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"stage finished","run_id":"...","method":"full","stage":"hsp_marker","duration_ms":1520}
//
// # Log Rotation
//
// [NewLoggerWithRotation] backs the logger with a [RotatingWriter] that
// rotates by size and optionally gzips backups (picrust2-runner.log.1.gz, ...).
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a
// bytes.Buffer to assert on entries.
package logging
