package oracle

import (
	"errors"
	"testing"
	"time"

	"flight-oracles/queues"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusCode(t *testing.T) {
	tests := []struct {
		in      uint8
		want    StatusCode
		wantErr bool
	}{
		{0, StatusUnknown, false},
		{10, StatusOnTime, false},
		{20, StatusLateAirline, false},
		{30, StatusLateWeather, false},
		{40, StatusLateTechnical, false},
		{50, StatusLateOther, false},
		{15, StatusUnknown, true},
		{60, StatusUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseStatusCode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatusCode(%d) err=%#v wantErr=%#v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseStatusCode(%d) got=%#v want=%#v", tt.in, got, tt.want)
		}
	}
}

func TestStatusCode_String(t *testing.T) {
	assert.Equal(t, "on-time", StatusOnTime.String())
	assert.Equal(t, "late-technical", StatusLateTechnical.String())
	assert.Equal(t, "code-7", StatusCode(7).String())
}

func TestDispatchState_Transitions(t *testing.T) {
	tests := []struct {
		from, to DispatchState
		ok       bool
	}{
		{StatePending, StateSubmitting, true},
		{StatePending, StateFailed, true},
		{StatePending, StateSubmitted, false},
		{StateSubmitting, StateSubmitted, true},
		{StateSubmitting, StateFailed, true},
		{StateSubmitted, StateFailed, false},
		{StateFailed, StateSubmitting, false},
		{StateSubmitted, StateSubmitting, false},
	}
	for _, tt := range tests {
		if got := tt.from.canAdvance(tt.to); got != tt.ok {
			t.Errorf("%s -> %s got=%v want=%v", tt.from, tt.to, got, tt.ok)
		}
	}
	assert.True(t, StateSubmitted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSubmitting.Terminal())
}

func TestStatusResponse_AdvanceRejectsTerminal(t *testing.T) {
	r := &StatusResponse{State: StateSubmitted}
	assert.Panics(t, func() { r.advance(StateFailed) })
}

func TestStatusResponse_Outcome(t *testing.T) {
	req := testRequest(4)
	ok := &StatusResponse{Oracle: "oracle-2", Request: req, Code: StatusOnTime, State: StateSubmitted, Duration: 1500 * time.Millisecond}
	out := ok.Outcome()
	assert.Equal(t, "oracle-response", out.Type)
	assert.Equal(t, queues.StateSubmitted, out.State)
	assert.Equal(t, uint8(10), out.StatusCode)
	assert.Equal(t, uint8(4), out.Index)
	assert.Equal(t, "ND1309", out.Flight)
	assert.Equal(t, int64(1500), out.DurationMs)
	assert.Nil(t, out.ErrorMessage)

	failed := &StatusResponse{Oracle: "oracle-2", Request: req, State: StateFailed, Err: errors.New("boom")}
	fo := failed.Outcome()
	assert.Equal(t, queues.StateFailed, fo.State)
	require.NotNil(t, fo.ErrorMessage)
	assert.Equal(t, "boom", *fo.ErrorMessage)
}

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		fixed   uint8
		want    StatusCode
		wantErr bool
	}{
		{"fixed default", "fixed", 10, StatusOnTime, false},
		{"empty is fixed", "", 20, StatusLateAirline, false},
		{"fixed bad code", "fixed", 11, 0, true},
		{"unknown policy", "scripted", 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.policy, tt.fixed)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p(testRequest(1)))
		})
	}
}

func TestRandomPolicy_OnlySupportedCodes(t *testing.T) {
	p, err := NewPolicy("random", 0)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		code := p(testRequest(1))
		_, err := ParseStatusCode(uint8(code))
		assert.NoError(t, err)
	}
}
