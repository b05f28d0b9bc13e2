// Package platform defines the community-platform adapter contract used by
// the transition orchestrator to perform channel side effects.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned by adapters for capabilities their platform
// does not offer. The orchestrator records it as automation degradation
// instead of failing the transition.
var ErrUnsupported = errors.New("platform: operation not supported")

// ChannelRef identifies one channel on the platform.
type ChannelRef struct {
	GuildID   string // server/workspace identifier
	ChannelID string // platform-native channel identifier
}

func (r ChannelRef) String() string {
	return fmt.Sprintf("%s/%s", r.GuildID, r.ChannelID)
}

// Adapter is the interface platform-specific implementations must satisfy.
// All calls are best-effort from the orchestrator's perspective: an error
// degrades automation but never blocks the stage transition.
type Adapter interface {
	// Connect establishes a connection to the platform.
	Connect(ctx context.Context) error

	// ValidateAccess reports whether the bot can see and act on a channel.
	ValidateAccess(ctx context.Context, ref ChannelRef) (bool, error)

	// LockChannel revokes send permission for the default audience.
	LockChannel(ctx context.Context, ref ChannelRef) error

	// UnlockChannel restores send permission for the default audience.
	UnlockChannel(ctx context.Context, ref ChannelRef) error

	// SetRateLimit applies per-user slow mode, in seconds. Zero clears it.
	SetRateLimit(ctx context.Context, ref ChannelRef, seconds int) error

	// SendMessage posts text to a channel.
	SendMessage(ctx context.Context, ref ChannelRef, text string) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// AutomationReport records what the orchestrator's best-effort platform
// calls actually achieved during one transition. Opened and Locked hold
// channel IDs; Degraded holds one reason per failed or skipped sub-step.
// Empty Degraded means full automation.
type AutomationReport struct {
	Opened   []string
	Locked   []string
	Degraded []string
}

// Degrade appends a formatted degradation reason.
func (r *AutomationReport) Degrade(format string, args ...interface{}) {
	r.Degraded = append(r.Degraded, fmt.Sprintf(format, args...))
}

// Full reports whether every attempted sub-step succeeded.
func (r *AutomationReport) Full() bool {
	return len(r.Degraded) == 0
}
