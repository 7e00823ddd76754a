package session

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestProbeLocal(t *testing.T) {
	tests := []struct {
		name     string
		reported string
		err      error
		want     Status
	}{
		{name: "readily", reported: "readily", want: StatusReady},
		{name: "after download", reported: "after-download", want: StatusPendingDownload},
		{name: "not installed", reported: "no", want: StatusUnavailable},
		{name: "unrecognized", reported: "maybe-later", want: StatusUnknown},
		{name: "empty", reported: "", want: StatusUnknown},
		{name: "facility unreachable", err: errors.New("connection refused"), want: StatusUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{}
			engine.On("Availability", mock.Anything).Return(tt.reported, tt.err)
			engine.On("SummarizerAvailability", mock.Anything).Return(tt.reported, tt.err)

			p := NewProber(engine, testLogger())
			assert.Equal(t, tt.want, p.ProbeLocal(context.Background()))
			assert.Equal(t, tt.want, p.ProbeSummarizer(context.Background()))

			// Probing is idempotent and uncached.
			assert.Equal(t, tt.want, p.ProbeLocal(context.Background()))
			engine.AssertNumberOfCalls(t, "Availability", 2)
		})
	}
}

func TestProbeWithoutEngine(t *testing.T) {
	p := NewProber(nil, testLogger())
	assert.Equal(t, StatusUnavailable, p.ProbeLocal(context.Background()))
	assert.Equal(t, StatusUnavailable, p.ProbeSummarizer(context.Background()))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "unavailable", StatusUnavailable.String())
	assert.Equal(t, "pending-download", StatusPendingDownload.String())
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "unknown", StatusUnknown.String())
	assert.Equal(t, "unknown", Status(42).String())
}
