// Package discord implements the platform Adapter for Discord.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/veilworks/rite/internal/platform"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.Channel(channelID, options...)
}
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.ChannelEditComplex(channelID, data, options...)
}
func (r *realSession) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error {
	return r.s.ChannelPermissionSet(channelID, targetID, targetType, allow, deny, options...)
}

// Adapter implements platform.Adapter for Discord. Channel locks are
// expressed as permission overwrites on the guild's @everyone role, whose
// role ID equals the guild ID.
type Adapter struct {
	sess     session
	botToken string
	guildID  string

	mu        sync.Mutex
	connected bool
	closed    bool

	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string // Discord bot token
	GuildID  string // guild the tenant's channels live in
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.GuildID == "" {
		return nil, fmt.Errorf("discord: guild ID is required")
	}

	a := &Adapter{
		botToken:    opts.BotToken,
		guildID:     opts.GuildID,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

// Connect establishes the Discord session.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	// Create real session if not injected (production path).
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds
		a.sess = &realSession{s: dg}
	}

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// ValidateAccess reports whether the bot can see the channel and it belongs
// to this adapter's guild. Missing or forbidden channels report false
// without an error.
func (a *Adapter) ValidateAccess(ctx context.Context, ref platform.ChannelRef) (bool, error) {
	if err := a.ensureConnected(); err != nil {
		return false, err
	}

	var ch *discordgo.Channel
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, apiErr = a.sess.Channel(ref.ChannelID, discordgo.WithContext(ctx))
		return apiErr
	})
	if err != nil {
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil {
			switch restErr.Response.StatusCode {
			case http.StatusForbidden, http.StatusNotFound:
				return false, nil
			}
		}
		return false, fmt.Errorf("discord: fetch channel %s: %w", ref.ChannelID, err)
	}

	guildID := ref.GuildID
	if guildID == "" {
		guildID = a.guildID
	}
	return ch.GuildID == guildID, nil
}

// LockChannel denies SendMessages for the @everyone role on the channel.
func (a *Adapter) LockChannel(ctx context.Context, ref platform.ChannelRef) error {
	if err := a.ensureConnected(); err != nil {
		return err
	}

	err := a.retryOnRateLimit(ctx, func() error {
		return a.sess.ChannelPermissionSet(ref.ChannelID, a.everyoneRole(ref),
			discordgo.PermissionOverwriteTypeRole, 0, discordgo.PermissionSendMessages,
			discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("discord: lock channel %s: %w", ref.ChannelID, err)
	}
	return nil
}

// UnlockChannel restores SendMessages for the @everyone role on the channel.
func (a *Adapter) UnlockChannel(ctx context.Context, ref platform.ChannelRef) error {
	if err := a.ensureConnected(); err != nil {
		return err
	}

	err := a.retryOnRateLimit(ctx, func() error {
		return a.sess.ChannelPermissionSet(ref.ChannelID, a.everyoneRole(ref),
			discordgo.PermissionOverwriteTypeRole, discordgo.PermissionSendMessages, 0,
			discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("discord: unlock channel %s: %w", ref.ChannelID, err)
	}
	return nil
}

// SetRateLimit applies per-user slow mode to the channel. Zero clears it.
func (a *Adapter) SetRateLimit(ctx context.Context, ref platform.ChannelRef, seconds int) error {
	if err := a.ensureConnected(); err != nil {
		return err
	}
	if seconds < 0 {
		return fmt.Errorf("discord: rate limit must be non-negative, got %d", seconds)
	}

	err := a.retryOnRateLimit(ctx, func() error {
		_, apiErr := a.sess.ChannelEditComplex(ref.ChannelID, &discordgo.ChannelEdit{
			RateLimitPerUser: &seconds,
		}, discordgo.WithContext(ctx))
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("discord: set rate limit on %s: %w", ref.ChannelID, err)
	}
	return nil
}

// SendMessage posts text to the channel.
func (a *Adapter) SendMessage(ctx context.Context, ref platform.ChannelRef, text string) error {
	if err := a.ensureConnected(); err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("discord: message text is required")
	}

	err := a.retryOnRateLimit(ctx, func() error {
		_, apiErr := a.sess.ChannelMessageSend(ref.ChannelID, text, discordgo.WithContext(ctx))
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message to %s: %w", ref.ChannelID, err)
	}
	return nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// everyoneRole returns the @everyone role ID for the ref's guild. Discord
// guarantees this role's ID equals the guild ID.
func (a *Adapter) everyoneRole(ref platform.ChannelRef) string {
	if ref.GuildID != "" {
		return ref.GuildID
	}
	return a.guildID
}

func (a *Adapter) ensureConnected() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return fmt.Errorf("discord: not connected")
	}
	return nil
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		// Check if it's a rate limit error.
		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		log.Printf("discord: rate limited (attempt %d/%d) — retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
