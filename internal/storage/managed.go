package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManagedBackend is the read-only area: values provisioned by an
// administrator in a YAML file. Writes fail with ErrReadOnly.
type ManagedBackend struct {
	values map[string]json.RawMessage
}

// OpenManaged reads the managed values from path. A missing file is an
// empty area.
func OpenManaged(path string) (*ManagedBackend, error) {
	values := make(map[string]json.RawMessage)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ManagedBackend{values: values}, nil
		}
		return nil, fmt.Errorf("reading managed storage: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing managed storage: %w", err)
	}
	for k, v := range doc {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding managed key %s: %w", k, err)
		}
		values[k] = raw
	}
	return &ManagedBackend{values: values}, nil
}

func (m *ManagedBackend) Load(_ context.Context, key string) (json.RawMessage, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *ManagedBackend) Save(context.Context, string, json.RawMessage) error {
	return ErrReadOnly
}

func (m *ManagedBackend) Close() error { return nil }
