package platform

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage records one SendMessage call on the mock.
type SentMessage struct {
	Ref  ChannelRef
	Text string
}

// MockAdapter implements Adapter for testing. It records every call and can
// be configured to fail all operations or deny access to specific channels.
type MockAdapter struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	failAll    bool
	denied     map[string]bool // channel IDs ValidateAccess reports false for
	locked     []ChannelRef
	unlocked   []ChannelRef
	rateLimits map[string]int // channel ID -> seconds
	sent       []SentMessage
}

// NewMockAdapter creates an empty MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		denied:     make(map[string]bool),
		rateLimits: make(map[string]int),
	}
}

// FailAll makes every subsequent operation return an error, simulating a
// platform outage.
func (m *MockAdapter) FailAll(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = fail
}

// DenyAccess makes ValidateAccess report false for a channel.
func (m *MockAdapter) DenyAccess(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[channelID] = true
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	if m.failAll {
		return fmt.Errorf("mock adapter: connect failed")
	}
	m.connected = true
	return nil
}

// ValidateAccess reports access per the DenyAccess configuration.
func (m *MockAdapter) ValidateAccess(ctx context.Context, ref ChannelRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return false, fmt.Errorf("mock adapter: validate access failed")
	}
	return !m.denied[ref.ChannelID], nil
}

// LockChannel records the lock.
func (m *MockAdapter) LockChannel(ctx context.Context, ref ChannelRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return fmt.Errorf("mock adapter: lock failed")
	}
	m.locked = append(m.locked, ref)
	return nil
}

// UnlockChannel records the unlock.
func (m *MockAdapter) UnlockChannel(ctx context.Context, ref ChannelRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return fmt.Errorf("mock adapter: unlock failed")
	}
	m.unlocked = append(m.unlocked, ref)
	return nil
}

// SetRateLimit records the slow-mode setting.
func (m *MockAdapter) SetRateLimit(ctx context.Context, ref ChannelRef, seconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return fmt.Errorf("mock adapter: set rate limit failed")
	}
	m.rateLimits[ref.ChannelID] = seconds
	return nil
}

// SendMessage records the message.
func (m *MockAdapter) SendMessage(ctx context.Context, ref ChannelRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return fmt.Errorf("mock adapter: send failed")
	}
	m.sent = append(m.sent, SentMessage{Ref: ref, Text: text})
	return nil
}

// Close shuts down the mock adapter.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.connected = false
	return nil
}

// --- Test helpers ---

// Connected reports whether Connect has been called successfully.
func (m *MockAdapter) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Locked returns a copy of all recorded lock calls.
func (m *MockAdapter) Locked() []ChannelRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChannelRef, len(m.locked))
	copy(out, m.locked)
	return out
}

// Unlocked returns a copy of all recorded unlock calls.
func (m *MockAdapter) Unlocked() []ChannelRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChannelRef, len(m.unlocked))
	copy(out, m.unlocked)
	return out
}

// RateLimit returns the last slow-mode value set for a channel.
func (m *MockAdapter) RateLimit(channelID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rateLimits[channelID]
	return v, ok
}

// Sent returns a copy of all recorded messages.
func (m *MockAdapter) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
