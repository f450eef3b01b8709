// Package pipeline holds the vocabulary shared by every conversation stage:
// stage names, the error taxonomy and the typed stage error that lets the
// orchestrator apply its fail-or-degrade policy structurally.
//
// A stage that can recover returns its fallback value together with a
// Degraded error; a stage that cannot returns a Fatal error and no value.
package pipeline

import (
	"errors"
	"fmt"
)

// Stage names one step of a turn.
type Stage string

const (
	StageDecode     Stage = "decode"
	StageDenoise    Stage = "denoise"
	StageTranscribe Stage = "transcribe"
	StageRefine     Stage = "refine"
	StageTranslate  Stage = "translate"
	StageClassify   Stage = "classify"
	StageDispatch   Stage = "dispatch"
	StageSynthesize Stage = "synthesize"
	StageHistory    Stage = "history"
)

// Kind classifies what went wrong, independent of where.
type Kind int

const (
	// KindInternal is an unexpected failure inside this process.
	KindInternal Kind = iota
	// KindInvalidInput means the caller supplied unusable data.
	KindInvalidInput
	// KindUpstream means an external provider failed or was unreachable.
	KindUpstream
	// KindState means the request conflicts with the current session state.
	KindState
)

// String returns the lower-case kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstream:
		return "upstream"
	case KindState:
		return "state"
	default:
		return "internal"
	}
}

// Sentinel causes. Wrap them in an *Error to attach the stage.
var (
	ErrAudioDecode           = errors.New("audio could not be decoded")
	ErrClassifierUnavailable = errors.New("intent classifier unavailable")
	ErrSynthesisFailed       = errors.New("speech synthesis failed")
)

// Error is the typed error every stage returns.
type Error struct {
	Stage Stage
	Kind  Kind

	// Recoverable is true when the stage already substituted a fallback
	// value and the turn may continue.
	Recoverable bool

	Err error
}

// Error implements error.
func (e *Error) Error() string {
	mode := "fatal"
	if e.Recoverable {
		mode = "degraded"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (%s)", e.Stage, mode, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%s): %v", e.Stage, mode, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Fatal wraps err as a non-recoverable failure of stage.
func Fatal(stage Stage, kind Kind, err error) error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// Degraded wraps err as a recovered upstream failure of stage.
func Degraded(stage Stage, err error) error {
	return &Error{Stage: stage, Kind: KindUpstream, Recoverable: true, Err: err}
}

// IsRecoverable reports whether err is a stage error that was recovered in
// place. Untyped errors are treated as fatal.
func IsRecoverable(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Recoverable
}

// StageOf returns the stage recorded on err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// KindOf returns the kind recorded on err. Untyped errors are KindInternal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
