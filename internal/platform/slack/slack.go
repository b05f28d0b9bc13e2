// Package slack implements the platform Adapter for Slack.
//
// Slack has no channel-level permission overwrites or slow mode, so
// LockChannel, UnlockChannel, and SetRateLimit report
// platform.ErrUnsupported; the orchestrator records these as automation
// degradation rather than failing the transition. Messaging and access
// checks use the real Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/veilworks/rite/internal/platform"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
// The Context variants are used throughout so the orchestrator's per-call
// timeout bounds the underlying HTTP requests, not just the retry waits.
type slackClient interface {
	AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
	GetConversationInfoContext(ctx context.Context, input *slackapi.GetConversationInfoInput) (*slackapi.Channel, error)
}

// Adapter implements platform.Adapter for Slack.
type Adapter struct {
	client   slackClient
	botToken string

	mu        sync.Mutex
	connected bool
	closed    bool
	botUserID string
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken string // xoxb-... Slack bot token
	// For testing: inject a mock client instead of real Slack API.
	Client slackClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}

	a := &Adapter{botToken: opts.BotToken}
	if opts.Client != nil {
		a.client = opts.Client
	}
	return a, nil
}

// Connect verifies the bot token against the Slack API.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	// Create real client if not injected (production path).
	if a.client == nil {
		a.client = slackapi.New(a.botToken)
	}

	auth, err := a.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID

	a.connected = true
	return nil
}

// ValidateAccess reports whether the bot can see the channel.
func (a *Adapter) ValidateAccess(ctx context.Context, ref platform.ChannelRef) (bool, error) {
	if err := a.ensureConnected(); err != nil {
		return false, err
	}

	var ch *slackapi.Channel
	err := retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, apiErr = a.client.GetConversationInfoContext(ctx, &slackapi.GetConversationInfoInput{
			ChannelID: ref.ChannelID,
		})
		return apiErr
	})
	if err != nil {
		if err.Error() == "channel_not_found" {
			return false, nil
		}
		return false, fmt.Errorf("slack: conversation info for %s: %w", ref.ChannelID, err)
	}
	return ch != nil, nil
}

// LockChannel is not supported: Slack has no per-channel posting lock the
// bot API can toggle.
func (a *Adapter) LockChannel(ctx context.Context, ref platform.ChannelRef) error {
	return fmt.Errorf("slack: lock channel: %w", platform.ErrUnsupported)
}

// UnlockChannel is not supported.
func (a *Adapter) UnlockChannel(ctx context.Context, ref platform.ChannelRef) error {
	return fmt.Errorf("slack: unlock channel: %w", platform.ErrUnsupported)
}

// SetRateLimit is not supported: Slack has no slow mode.
func (a *Adapter) SetRateLimit(ctx context.Context, ref platform.ChannelRef, seconds int) error {
	return fmt.Errorf("slack: set rate limit: %w", platform.ErrUnsupported)
}

// SendMessage posts text to the channel.
func (a *Adapter) SendMessage(ctx context.Context, ref platform.ChannelRef, text string) error {
	if err := a.ensureConnected(); err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("slack: message text is required")
	}

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.PostMessageContext(ctx, ref.ChannelID, slackapi.MsgOptionText(text, false))
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message to %s: %w", ref.ChannelID, err)
	}
	return nil
}

// Close shuts down the adapter. The Slack Web API is stateless, so this
// only marks the adapter unusable.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.connected = false
	return nil
}

// BotUserID returns the bot's Slack user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

func (a *Adapter) ensureConnected() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return fmt.Errorf("slack: not connected")
	}
	return nil
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}

		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
