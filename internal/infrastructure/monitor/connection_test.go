package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeQueue struct {
	size int
	err  error
}

func (f fakeQueue) Size() (int, error) { return f.size, f.err }

type gauge struct{ depth int }

func (g *gauge) OutboxDepth(n int) { g.depth = n }

func TestMonitor_Refresh(t *testing.T) {
	g := &gauge{}
	m := New(fakePinger{}, fakePinger{err: errors.New("down")}, fakeQueue{size: 4}, g, 0, nil)

	m.Refresh()
	status := m.GetStatus()

	assert.True(t, status.PostgreSQL)
	assert.False(t, status.Redis)
	assert.True(t, status.Outbox)
	assert.Equal(t, 4, status.OutboxDepth)
	assert.Equal(t, "postgres", status.LedgerStore)
	assert.Equal(t, 4, g.depth)
	assert.True(t, m.IsOnline())
}

func TestMonitor_MemoryStoreIsAlwaysOnline(t *testing.T) {
	m := New(nil, nil, fakeQueue{err: errors.New("closed")}, nil, 0, nil)

	m.Refresh()
	status := m.GetStatus()

	assert.True(t, m.IsOnline())
	assert.Equal(t, "memory", status.LedgerStore)
	assert.False(t, status.Outbox)
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	m := New(nil, nil, nil, nil, 0, nil)
	m.Start()
	m.Stop()
	assert.NotPanics(t, m.Stop)
}
