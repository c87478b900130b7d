package event

import "time"

// Event is implemented by everything published on a Bus.
type Event interface {
	// EventType returns "category.action", e.g. "stage.started".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type names.
const (
	TypeRunStarted     = "run.started"
	TypeRunCompleted   = "run.completed"
	TypePhaseChanged   = "phase.changed"
	TypeStageStarted   = "stage.started"
	TypeStageCompleted = "stage.completed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// RunStartedEvent is published once a call's parameters are validated.
type RunStartedEvent struct {
	baseEvent
	RunID  string
	Method string
	Stages int // enabled stages in the plan
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, method string, stages int) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TypeRunStarted),
		RunID:     runID,
		Method:    method,
		Stages:    stages,
	}
}

// RunCompletedEvent is published when a call returns.
type RunCompletedEvent struct {
	baseEvent
	RunID    string
	Success  bool
	Duration time.Duration
	Error    string
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID string, success bool, duration time.Duration, errMsg string) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent(TypeRunCompleted),
		RunID:     runID,
		Success:   success,
		Duration:  duration,
		Error:     errMsg,
	}
}

// PhaseChangedEvent is published on every phase transition.
type PhaseChangedEvent struct {
	baseEvent
	RunID     string
	FromPhase string
	ToPhase   string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(runID, from, to string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		RunID:     runID,
		FromPhase: from,
		ToPhase:   to,
	}
}

// StageStartedEvent is published before an external program starts.
type StageStartedEvent struct {
	baseEvent
	RunID   string
	Stage   string
	Program string
	Index   int // 1-based position among enabled stages
	Total   int
}

// NewStageStartedEvent creates a StageStartedEvent.
func NewStageStartedEvent(runID, stage, program string, index, total int) StageStartedEvent {
	return StageStartedEvent{
		baseEvent: newBaseEvent(TypeStageStarted),
		RunID:     runID,
		Stage:     stage,
		Program:   program,
		Index:     index,
		Total:     total,
	}
}

// StageCompletedEvent is published after an external program exits.
type StageCompletedEvent struct {
	baseEvent
	RunID    string
	Stage    string
	ExitCode int
	Duration time.Duration
	Success  bool
}

// NewStageCompletedEvent creates a StageCompletedEvent.
func NewStageCompletedEvent(runID, stage string, exitCode int, duration time.Duration) StageCompletedEvent {
	return StageCompletedEvent{
		baseEvent: newBaseEvent(TypeStageCompleted),
		RunID:     runID,
		Stage:     stage,
		ExitCode:  exitCode,
		Duration:  duration,
		Success:   exitCode == 0,
	}
}
