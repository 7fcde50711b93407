// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hub

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records writes and can be told to fail.
type fakeConn struct {
	mu       sync.Mutex
	payloads []any
	failWith error
	closed   bool
}

func (f *fakeConn) WriteJSON(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestRegisterAndSend(t *testing.T) {
	h := New(nil)
	c := &fakeConn{}

	h.Register(c, "nphies_service")
	require.Equal(t, 1, h.Len())

	err := h.Send(c, map[string]string{"type": "ping"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.received())
}

func TestSendToUnregisteredConnection(t *testing.T) {
	h := New(nil)
	err := h.Send(&fakeConn{}, "payload")
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSendSurfacesWriteFailure(t *testing.T) {
	h := New(nil)
	c := &fakeConn{failWith: errors.New("broken pipe")}
	h.Register(c, "svc")

	err := h.Send(c, "payload")
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := New(nil)
	a, b := &fakeConn{}, &fakeConn{}
	h.Register(a, "a")
	h.Register(b, "b")

	h.Unregister(a)
	assert.Equal(t, 1, h.Len())

	// Second removal of the same connection is a no-op.
	h.Unregister(a)
	assert.Equal(t, 1, h.Len())
}

func TestBroadcastBestEffort(t *testing.T) {
	h := New(nil)
	good1, bad, good2 := &fakeConn{}, &fakeConn{failWith: errors.New("gone")}, &fakeConn{}
	h.Register(good1, "one")
	h.Register(bad, "two")
	h.Register(good2, "three")

	delivered := h.Broadcast(map[string]string{"type": "notice"})

	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, good1.received())
	assert.Equal(t, 1, good2.received())
	assert.Equal(t, 2, h.Len(), "failed connection is evicted")
}

func TestConcurrentRegisterBroadcastUnregister(t *testing.T) {
	h := New(nil)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			h.Register(c, "svc")
			h.Broadcast("tick")
			h.Unregister(c)
			h.Unregister(c)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.Len())
}
