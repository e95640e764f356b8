package queues

import (
	"context"
	"errors"
	"time"
)

// StatusRequest is one decoded flight-status request event.
type StatusRequest struct {
	ID        string    `json:"id,omitempty"`
	Index     uint8     `json:"index"`
	Airline   string    `json:"airline"`
	Flight    string    `json:"flight"`
	Timestamp uint64    `json:"timestamp"`
	Received  time.Time `json:"-"`
}

// Validate checks the fields every request source must populate.
func (r *StatusRequest) Validate() error {
	if r.Airline == "" {
		return errors.New("missing airline")
	}
	if r.Flight == "" {
		return errors.New("missing flight")
	}
	if r.Timestamp == 0 {
		return errors.New("missing timestamp")
	}
	return nil
}

type ResponseState string

const (
	StateSubmitted ResponseState = "Submitted"
	StateFailed    ResponseState = "Failed"
)

// ResponseOutcome is the envelope reported for every terminal submission.
type ResponseOutcome struct {
	EnvelopeVersion string        `json:"envelopeVersion"`
	Type            string        `json:"type"`
	RequestID       string        `json:"requestId"`
	Oracle          string        `json:"oracle"`
	Index           uint8         `json:"index"`
	Airline         string        `json:"airline"`
	Flight          string        `json:"flight"`
	Timestamp       uint64        `json:"timestamp"`
	StatusCode      uint8         `json:"statusCode"`
	State           ResponseState `json:"state"`
	DurationMs      int64         `json:"durationMs"`
	ErrorMessage    *string       `json:"errorMessage,omitempty"`
}

type Subscriber interface {
	Start(ctx context.Context, handler func(context.Context, *StatusRequest) error) error
}

type Publisher interface {
	PublishResult(ctx context.Context, res *ResponseOutcome) error
}
