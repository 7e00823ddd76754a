package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Areas understood by Open.
const (
	AreaLocal   = "local"
	AreaSync    = "sync"
	AreaManaged = "managed"
	AreaMemory  = "memory"
)

// Options selects and configures a storage area.
type Options struct {
	Area  string
	Path  string // SQLite file for local, YAML file for managed
	Redis RedisOptions
}

// Open builds a Store for the configured area.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch opts.Area {
	case AreaLocal, "":
		backend, err = OpenSQLite(opts.Path)
	case AreaSync:
		backend, err = OpenRedis(ctx, opts.Redis, logger)
	case AreaManaged:
		backend, err = OpenManaged(opts.Path)
	case AreaMemory:
		backend = NewMemory()
	default:
		return nil, fmt.Errorf("unsupported storage area %q", opts.Area)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("area", opts.Area).Msg("storage opened")
	return New(backend, logger), nil
}
