// Package storage is a small reactive key-value store. Values are JSON.
// Writers call Set or Update; readers Subscribe to a key and are told about
// every change, including changes made by other processes when the backend
// can observe them.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrReadOnly is returned when writing to a read-only area.
var ErrReadOnly = errors.New("storage area is read-only")

// Backend persists raw JSON values by key.
type Backend interface {
	// Load returns the stored value and whether the key exists.
	Load(ctx context.Context, key string) (json.RawMessage, bool, error)
	Save(ctx context.Context, key string, value json.RawMessage) error
	Close() error
}

// Watcher is implemented by backends that can observe writes made elsewhere.
// Watch blocks until ctx is done, calling fn for each external change.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string, value json.RawMessage)) error
}

// Subscriber receives the current value of a key. value is nil when the key
// is absent.
type Subscriber func(value json.RawMessage)

// Store adds change notification on top of a Backend.
type Store struct {
	backend Backend
	logger  zerolog.Logger

	mu     sync.Mutex
	subs   map[string]map[int]Subscriber
	nextID int

	updateMu sync.Mutex

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New wraps backend. If backend implements Watcher, a goroutine forwards its
// changes to OnExternalChange until Close.
func New(backend Backend, logger zerolog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend: backend,
		logger:  logger,
		subs:    make(map[string]map[int]Subscriber),
		cancel:  cancel,
	}

	if w, ok := backend.(Watcher); ok {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := w.Watch(ctx, s.OnExternalChange); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("storage watcher stopped")
			}
		}()
	}
	return s
}

// Get decodes the value stored under key into out. It reports false when the
// key is absent, leaving out untouched.
func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.backend.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key and notifies the key's subscribers.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.backend.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	s.notify(key, raw)
	return nil
}

// Update replaces the value under key with fn(current). current is nil when
// the key is absent. Updates through one Store are serialized; writers in
// other processes may still interleave.
func (s *Store) Update(ctx context.Context, key string, fn func(current json.RawMessage) (any, error)) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	current, _, err := s.backend.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, next)
}

// Subscribe calls fn with the current value of key, then again after every
// change. The returned function removes the subscription; calling it more
// than once is harmless.
func (s *Store) Subscribe(ctx context.Context, key string, fn Subscriber) (func(), error) {
	current, _, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]Subscriber)
	}
	s.subs[key][id] = fn
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[key], id)
			if len(s.subs[key]) == 0 {
				delete(s.subs, key)
			}
			s.mu.Unlock()
		})
	}, nil
}

// OnExternalChange delivers a value written outside this Store to the key's
// subscribers. It does not write to the backend.
func (s *Store) OnExternalChange(key string, value json.RawMessage) {
	s.logger.Debug().Str("key", key).Msg("external storage change")
	s.notify(key, value)
}

func (s *Store) notify(key string, value json.RawMessage) {
	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Close stops the watcher goroutine, if any, and closes the backend.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.closeErr = s.backend.Close()
	})
	return s.closeErr
}
