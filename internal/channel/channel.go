package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/makt28/netcanary/internal/snapshot"
)

// Channel is the interface that all notification transports must satisfy.
// A Channel is owned by exactly one scheduler; Deliver is never called
// concurrently for the same channel by that scheduler.
type Channel interface {
	// Name returns the configured channel name (e.g., "email", "ops-discord").
	Name() string

	// Kind returns the transport type identifier (e.g., "email", "discord").
	Kind() string

	// Deliver sends a rendering of the snapshot to the configured destination.
	// A *RejectedError in the returned chain means the server answered with a
	// failure; any other error is a transport failure.
	Deliver(ctx context.Context, snap snapshot.Snapshot) error

	// Close releases the transport handle.
	Close() error
}

// Trigger is an inbound request for an on-demand report.
type Trigger struct {
	ReplyTo  string
	From     string
	Received time.Time
}

// Triggerer is implemented by channels that can ask for an immediate report
// outside of the scheduled ticks.
type Triggerer interface {
	// Triggers is closed when the channel is closed.
	Triggers() <-chan Trigger

	// Reply answers a trigger with the given snapshot.
	Reply(ctx context.Context, t Trigger, snap snapshot.Snapshot) error
}

// Outcome is the result class of one delivery attempt.
type Outcome int

const (
	Success Outcome = iota
	TransportFailure
	RejectedByServer
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransportFailure:
		return "transport_failure"
	case RejectedByServer:
		return "rejected_by_server"
	default:
		return "unknown"
	}
}

// RejectedError reports that the remote server received the request and
// refused it. Code is the server's status code when it has one.
type RejectedError struct {
	Code   int
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rejected by server (%d): %s", e.Code, e.Detail)
	}
	return "rejected by server: " + e.Detail
}

// Reject builds a *RejectedError.
func Reject(code int, detail string) error {
	return &RejectedError{Code: code, Detail: detail}
}

// Classify maps a Deliver error onto an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return Success
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return RejectedByServer
	}
	return TransportFailure
}

// SetupError reports that a channel could not be constructed.
type SetupError struct {
	Channel string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("channel %q setup failed: %v", e.Channel, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
