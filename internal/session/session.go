// Package session negotiates between a local inference engine and a remote
// generative API. A Factory picks the backend for a Config and returns a
// Session; a Facade runs prompts and summaries against it, enforcing the
// local token budget and releasing local resources on every exit path.
package session

import (
	"context"
	"sync"

	"github.com/hpkotak/amphy/internal/provider"
)

// Kind discriminates the two session variants.
type Kind int

const (
	KindLocal Kind = iota + 1
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return "invalid"
	}
}

// Config selects and seeds a session. It is read once by Factory.Create.
type Config struct {
	UseRemote    bool
	RemoteAPIKey string
	SystemPrompt string
}

// Session is a handle to exactly one backend. Its Kind is fixed at creation.
//
// A local session holds an engine model that is released after one prompt;
// later prompts return ErrSessionClosed. Remote sessions hold nothing to
// release and may be reused.
type Session struct {
	kind Kind

	engine provider.LocalEngine
	local  provider.LocalModel
	remote provider.RemoteClient

	mu      sync.Mutex
	spent   bool
	dispose sync.Once
	dErr    error
}

func newLocal(engine provider.LocalEngine, model provider.LocalModel) *Session {
	return &Session{kind: KindLocal, engine: engine, local: model}
}

func newRemote(client provider.RemoteClient) *Session {
	return &Session{kind: KindRemote, remote: client}
}

// Kind reports the backend variant.
func (s *Session) Kind() Kind { return s.kind }

// Backend names the engine or vendor behind the session.
func (s *Session) Backend() string {
	if s.kind == KindRemote {
		return s.remote.Name()
	}
	return s.engine.Name()
}

// Model returns the pinned model id of a remote session, or "" for local ones.
func (s *Session) Model() string {
	if s.kind == KindRemote {
		return s.remote.Model()
	}
	return ""
}

// Close releases the local model if it has not been released yet. It is
// safe to call more than once and is a no-op for remote sessions.
func (s *Session) Close(ctx context.Context) error {
	if s.kind != KindLocal {
		return nil
	}
	s.mu.Lock()
	s.spent = true
	s.mu.Unlock()
	return s.release(ctx)
}

// acquire marks a local session as used. Only the first caller succeeds.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spent {
		return ErrSessionClosed
	}
	s.spent = true
	return nil
}

func (s *Session) release(ctx context.Context) error {
	s.dispose.Do(func() {
		s.dErr = s.local.Destroy(context.WithoutCancel(ctx))
	})
	return s.dErr
}
