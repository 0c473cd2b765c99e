package executor

import (
	"errors"
	"strings"
)

// Phase tags used as keys in a StageError's Exceptions map. These are
// stable string constants exposed for tests and monitoring, per the
// pipeline's error model.
const (
	WorkBodyException = "WORK_BODY_EXCEPTION"
	StopException     = "STOP_EXCEPTION"
	StartException    = "START_EXCEPTION"
)

// PrecheckMessage is the fixed text recorded under WorkBodyException when
// an executor aborts because a peer stage already failed.
const PrecheckMessage = "a peer stage has already failed; aborting"

// ErrPrecheckAborted is the error value recorded for a precheck abort. Its
// Error() text is exactly PrecheckMessage.
var ErrPrecheckAborted = errors.New(PrecheckMessage)

// StageError is the per-executor failure record: a mapping from
// error-phase tag to the underlying error. An executor that never failed
// has an empty (nil) Exceptions map.
type StageError struct {
	StageName  string
	Exceptions map[string]error
}

func newStageError(name string) *StageError {
	return &StageError{StageName: name}
}

func (e *StageError) record(phase string, err error) {
	if e.Exceptions == nil {
		e.Exceptions = make(map[string]error, 1)
	}
	e.Exceptions[phase] = err
}

// HasError reports whether any phase recorded a failure.
func (e *StageError) HasError() bool {
	return len(e.Exceptions) > 0
}

func (e *StageError) String() string {
	if !e.HasError() {
		return e.StageName + ": ok"
	}
	var b strings.Builder
	b.WriteString(e.StageName)
	b.WriteString(": ")
	first := true
	for _, phase := range []string{StartException, WorkBodyException, StopException} {
		if err, ok := e.Exceptions[phase]; ok {
			if !first {
				b.WriteString("; ")
			}
			b.WriteString(phase)
			b.WriteString("=")
			b.WriteString(err.Error())
			first = false
		}
	}
	return b.String()
}

// PipelineException is the single failure signal from Pipeline.Run: the
// ordered collection of StageError, one per executor, preserving executor
// order (source first).
type PipelineException struct {
	Errors []*StageError
}

func (p *PipelineException) Error() string {
	var parts []string
	for _, e := range p.Errors {
		if e.HasError() {
			parts = append(parts, e.String())
		}
	}
	return "pipeline failed: " + strings.Join(parts, " | ")
}
