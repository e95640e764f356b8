package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"flight-oracles/pool"
	"flight-oracles/queues"
)

var (
	// ErrNoIdentities means provisioning attempted registrations and none succeeded.
	ErrNoIdentities = errors.New("no oracle identities registered")
	// ErrShuttingDown is returned by Handle once Shutdown has begun.
	ErrShuttingDown = errors.New("coordinator shutting down")
)

// Registry is the registration side of the external contract.
type Registry interface {
	Register(ctx context.Context, oracle string, stake *big.Int) error
	Indexes(ctx context.Context, oracle string) (pool.IndexSet, error)
}

// Responder submits a status response under the oracle's credentials.
type Responder interface {
	SubmitResponse(ctx context.Context, oracle string, req *queues.StatusRequest, code StatusCode) error
}

type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

var statusCodes = []StatusCode{
	StatusUnknown,
	StatusOnTime,
	StatusLateAirline,
	StatusLateWeather,
	StatusLateTechnical,
	StatusLateOther,
}

// ParseStatusCode accepts only the codes the contract understands.
func ParseStatusCode(v uint8) (StatusCode, error) {
	for _, c := range statusCodes {
		if uint8(c) == v {
			return c, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unsupported status code %d", v)
}

func (c StatusCode) String() string {
	switch c {
	case StatusUnknown:
		return "unknown"
	case StatusOnTime:
		return "on-time"
	case StatusLateAirline:
		return "late-airline"
	case StatusLateWeather:
		return "late-weather"
	case StatusLateTechnical:
		return "late-technical"
	case StatusLateOther:
		return "late-other"
	}
	return fmt.Sprintf("code-%d", uint8(c))
}

// DispatchState tracks one (request, oracle) submission.
type DispatchState string

const (
	StatePending    DispatchState = "Pending"
	StateSubmitting DispatchState = "Submitting"
	StateSubmitted  DispatchState = "Submitted"
	StateFailed     DispatchState = "Failed"
)

// Terminal reports whether no further transition is allowed.
func (s DispatchState) Terminal() bool {
	return s == StateSubmitted || s == StateFailed
}

func (s DispatchState) canAdvance(to DispatchState) bool {
	switch s {
	case StatePending:
		return to == StateSubmitting || to == StateFailed
	case StateSubmitting:
		return to == StateSubmitted || to == StateFailed
	}
	return false
}

// StatusResponse is the record of one submission attempt.
type StatusResponse struct {
	Oracle     string
	Request    *queues.StatusRequest
	Code       StatusCode
	State      DispatchState
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

func (r *StatusResponse) advance(to DispatchState) {
	if !r.State.canAdvance(to) {
		panic(fmt.Sprintf("invalid dispatch transition %s -> %s", r.State, to))
	}
	r.State = to
}

// Outcome converts a terminal response into its reported envelope.
func (r *StatusResponse) Outcome() *queues.ResponseOutcome {
	out := &queues.ResponseOutcome{
		EnvelopeVersion: "1.0",
		Type:            "oracle-response",
		Oracle:          r.Oracle,
		StatusCode:      uint8(r.Code),
		DurationMs:      r.Duration.Milliseconds(),
		State:           queues.StateSubmitted,
	}
	if r.Request != nil {
		out.RequestID = r.Request.ID
		out.Index = r.Request.Index
		out.Airline = r.Request.Airline
		out.Flight = r.Request.Flight
		out.Timestamp = r.Request.Timestamp
	}
	if r.State == StateFailed {
		out.State = queues.StateFailed
		msg := "unknown failure"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		out.ErrorMessage = &msg
	}
	return out
}

// ProvisioningError reports a single identity that could not join the pool.
type ProvisioningError struct {
	Oracle string
	Stage  string
	Err    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision %s (%s): %v", e.Oracle, e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// SubmissionError reports a failed response submission for one oracle.
type SubmissionError struct {
	Oracle    string
	RequestID string
	Index     uint8
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s for request %s (index %d): %v", e.Oracle, e.RequestID, e.Index, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
