package session

import (
	"context"

	"github.com/hpkotak/amphy/internal/provider"
	"github.com/rs/zerolog"
)

// Status is the readiness of a local facility.
type Status int

const (
	StatusUnavailable Status = iota
	StatusPendingDownload
	StatusReady
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusPendingDownload:
		return "pending-download"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Prober queries a local engine for readiness. It never returns an error:
// every outcome, including a missing or unreachable engine, is a Status.
type Prober struct {
	engine provider.LocalEngine
	logger zerolog.Logger
}

// NewProber returns a Prober for engine. engine may be nil when no local
// facility is configured.
func NewProber(engine provider.LocalEngine, logger zerolog.Logger) *Prober {
	return &Prober{engine: engine, logger: logger}
}

// ProbeLocal reports whether the local language model can serve a session.
func (p *Prober) ProbeLocal(ctx context.Context) Status {
	if p.engine == nil {
		return p.probe(ctx, "language model", nil)
	}
	return p.probe(ctx, "language model", p.engine.Availability)
}

// ProbeSummarizer reports whether the local summarizer facility can serve.
func (p *Prober) ProbeSummarizer(ctx context.Context) Status {
	if p.engine == nil {
		return p.probe(ctx, "summarizer", nil)
	}
	return p.probe(ctx, "summarizer", p.engine.SummarizerAvailability)
}

func (p *Prober) probe(ctx context.Context, facility string, query func(context.Context) (string, error)) Status {
	if query == nil {
		p.logger.Warn().Str("facility", facility).Msg("no local model facility configured")
		return StatusUnavailable
	}

	raw, err := query(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Str("facility", facility).Msg("local model facility not reachable")
		return StatusUnavailable
	}

	status := mapAvailability(raw)
	ev := p.logger.Debug()
	if status != StatusReady {
		ev = p.logger.Warn()
	}
	ev.Str("facility", facility).Str("reported", raw).Str("status", status.String()).Msg("local availability probed")
	return status
}

func mapAvailability(raw string) Status {
	switch raw {
	case provider.AvailabilityNo:
		return StatusUnavailable
	case provider.AvailabilityAfterDownload:
		return StatusPendingDownload
	case provider.AvailabilityReadily:
		return StatusReady
	default:
		return StatusUnknown
	}
}
