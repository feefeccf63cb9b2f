// Package lock provides per-channel locking so that every state transition of a
// game running in one chat channel is applied by a single writer at a time.
package lock

import (
	"sync"
)

// channelMutex wraps a mutex with a count of holders and waiters.
type channelMutex struct {
	mu   sync.Mutex
	refs int
}

// ChannelLock serializes work per channel. Different channels never block
// each other.
type ChannelLock struct {
	mu    sync.Mutex
	locks map[string]*channelMutex
	pool  sync.Pool
}

// NewChannelLock creates a new ChannelLock instance.
func NewChannelLock() *ChannelLock {
	return &ChannelLock{
		locks: make(map[string]*channelMutex),
		pool: sync.Pool{
			New: func() any {
				return &channelMutex{}
			},
		},
	}
}

// acquireRef returns the mutex for a channel and registers the caller as a
// holder so the entry is not recycled underneath it.
func (cl *ChannelLock) acquireRef(channelID string) *channelMutex {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	m, ok := cl.locks[channelID]
	if !ok {
		m = cl.pool.Get().(*channelMutex)
		m.refs = 0
		cl.locks[channelID] = m
	}
	m.refs++
	return m
}

// releaseRef drops a holder and recycles the entry once nobody uses it.
func (cl *ChannelLock) releaseRef(channelID string, m *channelMutex) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(cl.locks, channelID)
		cl.pool.Put(m)
	}
}

// Lock acquires the lock for a channel.
func (cl *ChannelLock) Lock(channelID string) {
	m := cl.acquireRef(channelID)
	m.mu.Lock()
}

// Unlock releases the lock for a channel.
func (cl *ChannelLock) Unlock(channelID string) {
	cl.mu.Lock()
	m, ok := cl.locks[channelID]
	cl.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	cl.releaseRef(channelID, m)
}

// size returns the number of channels with a live lock entry.
func (cl *ChannelLock) size() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.locks)
}
