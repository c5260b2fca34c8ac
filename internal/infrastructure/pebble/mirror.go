package pebbleinfra

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

const keyPrefix = "marker:"

// Mirror keeps marker records in an embedded Pebble database on local disk.
type Mirror struct {
	db  *pebble.DB
	log *zap.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, log *zap.Logger) (*Mirror, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}
	log.Info("pebble opened", zap.String("path", path))
	return &Mirror{db: db, log: log}, nil
}

func (m *Mirror) Get(_ context.Context, key string) (string, bool, error) {
	v, closer, err := m.db.Get([]byte(keyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	// v is only valid until closer is closed.
	value := string(v)
	if err := closer.Close(); err != nil {
		return "", false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	return value, true, nil
}

// Set syncs to disk before returning.
func (m *Mirror) Set(_ context.Context, key, value string) error {
	if err := m.db.Set([]byte(keyPrefix+key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

func (m *Mirror) Close() error {
	if err := m.db.Close(); err != nil {
		return err
	}
	m.log.Info("pebble closed")
	return nil
}
