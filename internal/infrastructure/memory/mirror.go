package memory

import (
	"context"

	"github.com/puzpuzpuz/xsync"
)

// Mirror is a process-local marker mirror. It does not survive restarts and is
// meant for development and tests.
type Mirror struct {
	data *xsync.MapOf[string, string]
}

func NewMirror() *Mirror {
	return &Mirror{data: xsync.NewMapOf[string]()}
}

func (m *Mirror) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data.Load(key)
	return v, ok, nil
}

func (m *Mirror) Set(_ context.Context, key, value string) error {
	m.data.Store(key, value)
	return nil
}
