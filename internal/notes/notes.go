// Package notes keeps the user's saved text snippets in a storage area.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hpkotak/amphy/internal/storage"
)

// Key is the storage key holding the note list.
const Key = "notes"

var (
	ErrEmptyNote        = errors.New("note text is empty")
	ErrIndexOutOfRange  = errors.New("note index out of range")
	errUnexpectedFormat = errors.New("stored notes have an unexpected format")
)

// Note is one saved snippet. Tab names where it was captured.
type Note struct {
	ID      string    `json:"id"`
	Tab     string    `json:"tab"`
	Text    string    `json:"text"`
	SavedAt time.Time `json:"saved_at"`
}

// Group is the notes captured from one tab, in saved order.
type Group struct {
	Tab   string
	Notes []Note
}

// Store is the subset of storage.Store a Notebook needs.
type Store interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Update(ctx context.Context, key string, fn func(current json.RawMessage) (any, error)) error
	Subscribe(ctx context.Context, key string, fn storage.Subscriber) (func(), error)
}

// Notebook reads and writes the note list.
type Notebook struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Notebook {
	return &Notebook{store: store, now: time.Now}
}

// Add appends a note and returns it with its 1-based position in the list
// as of the write. Reading the list again later may show other writers' notes.
func (n *Notebook) Add(ctx context.Context, tab, text string) (Note, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, 0, ErrEmptyNote
	}
	note := Note{
		ID:      uuid.NewString(),
		Tab:     strings.TrimSpace(tab),
		Text:    text,
		SavedAt: n.now().UTC(),
	}

	var pos int
	err := n.store.Update(ctx, Key, func(cur json.RawMessage) (any, error) {
		list, err := decode(cur)
		if err != nil {
			return nil, err
		}
		pos = len(list) + 1
		return append(list, note), nil
	})
	if err != nil {
		return Note{}, 0, fmt.Errorf("saving note: %w", err)
	}
	return note, pos, nil
}

// List returns every note in saved order.
func (n *Notebook) List(ctx context.Context) ([]Note, error) {
	var list []Note
	if _, err := n.store.Get(ctx, Key, &list); err != nil {
		return nil, fmt.Errorf("loading notes: %w", err)
	}
	return list, nil
}

// Groups returns notes grouped by tab, tabs in first-seen order.
func (n *Notebook) Groups(ctx context.Context) ([]Group, error) {
	list, err := n.List(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByTab(list), nil
}

// GroupByTab groups notes by tab, tabs in first-seen order.
func GroupByTab(list []Note) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, note := range list {
		i, ok := index[note.Tab]
		if !ok {
			i = len(groups)
			index[note.Tab] = i
			groups = append(groups, Group{Tab: note.Tab})
		}
		groups[i].Notes = append(groups[i].Notes, note)
	}
	return groups
}

// Delete removes the note at the 0-based index and returns it.
func (n *Notebook) Delete(ctx context.Context, index int) (Note, error) {
	var removed Note
	err := n.store.Update(ctx, Key, func(cur json.RawMessage) (any, error) {
		list, err := decode(cur)
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(list) {
			return nil, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(list))
		}
		removed = list[index]
		return append(list[:index:index], list[index+1:]...), nil
	})
	if err != nil {
		return Note{}, err
	}
	return removed, nil
}

// Watch calls fn with the current notes and again after every change,
// including changes synced from elsewhere. Call the returned function to stop.
func (n *Notebook) Watch(ctx context.Context, fn func([]Note)) (func(), error) {
	return n.store.Subscribe(ctx, Key, func(raw json.RawMessage) {
		list, err := decode(raw)
		if err != nil {
			return
		}
		fn(list)
	})
}

func decode(raw json.RawMessage) ([]Note, error) {
	if raw == nil {
		return nil, nil
	}
	var list []Note
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnexpectedFormat, err)
	}
	return list, nil
}

// Texts returns the text of each note.
func Texts(list []Note) []string {
	out := make([]string, len(list))
	for i, note := range list {
		out[i] = note.Text
	}
	return out
}
