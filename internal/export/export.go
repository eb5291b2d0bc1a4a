// Package export runs CSV exports of a project's ledger through a sink.
//
// Each project has at most one attempt in flight. An attempt moves through
// Idle, Preparing, AwaitingSink and then Completed or Failed, after which the
// project is Idle again. The CSV bytes are always fully encoded before the
// sink is activated.
package export

import (
	"context"
	"errors"
	"time"
)

// SinkKind names a sink variant.
type SinkKind string

const (
	KindFile SinkKind = "file"
	KindMail SinkKind = "mail"
)

// State is the orchestrator state of a project's export.
type State int

const (
	Idle State = iota
	Preparing
	AwaitingSink
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case AwaitingSink:
		return "awaiting_sink"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Payload is what a sink receives: the encoded ledger and the metadata needed
// to save or mail it.
type Payload struct {
	AttemptID   string
	ProjectID   string
	ProjectName string
	FileName    string
	MimeType    string
	Subject     string
	Body        string
	Recipients  []string
	Data        []byte
}

// Outcome is the single signal a sink reports.
type Outcome string

const (
	OutcomeSaved     Outcome = "saved"
	OutcomeSent      Outcome = "sent"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Completion is a sink's completion signal.
type Completion struct {
	Outcome     Outcome
	Destination string // set for OutcomeSaved
	Err         error  // set for OutcomeFailed
}

// Saved reports that the file was written to dest.
func Saved(dest string) Completion {
	return Completion{Outcome: OutcomeSaved, Destination: dest}
}

// Sent reports that the message was handed off for delivery.
func Sent() Completion {
	return Completion{Outcome: OutcomeSent}
}

// Cancelled reports that the user dismissed the sink.
func Cancelled() Completion {
	return Completion{Outcome: OutcomeCancelled}
}

// FailedWith reports a sink failure.
func FailedWith(err error) Completion {
	if err == nil {
		err = errors.New("unknown sink failure")
	}
	return Completion{Outcome: OutcomeFailed, Err: err}
}

// Sink accepts export bytes and eventually reports exactly one Completion.
//
// Activate must not block on user interaction or I/O: it hands the payload
// over and returns a channel that later yields the completion. An error from
// Activate fails the attempt immediately.
type Sink interface {
	Kind() SinkKind
	Activate(ctx context.Context, p Payload) (<-chan Completion, error)
}

// Result is the terminal record of an attempt.
type Result struct {
	State      State
	Completion Completion
	Message    string // user-facing summary
	Err        error
	Duration   time.Duration
}

// Transition is reported to the observer on every state change.
type Transition struct {
	AttemptID string
	ProjectID string
	From      State
	To        State
}
