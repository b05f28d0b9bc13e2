package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/veilworks/rite/internal/platform"
)

// --- Mock Discord session ---

type mockSession struct {
	mu           sync.Mutex
	opened       bool
	closeCalled  bool
	openErr      error
	sentMessages []sentMessage
	sendErr      error
	sendAttempts int
	overwrites   []permissionOverwrite
	permErr      error
	permDelay    time.Duration // simulated API latency, cut short by the request ctx
	edits        []channelEdit
	editErr      error
	channels     map[string]*discordgo.Channel // for Channel() lookups
	channelErr   error
}

type sentMessage struct {
	channelID string
	content   string
}

type permissionOverwrite struct {
	channelID  string
	targetID   string
	targetType discordgo.PermissionOverwriteType
	allow      int64
	deny       int64
}

type channelEdit struct {
	channelID string
	data      *discordgo.ChannelEdit
}

func newMockSession() *mockSession {
	return &mockSession{
		channels: make(map[string]*discordgo.Channel),
	}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

func (m *mockSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channelErr != nil {
		return nil, m.channelErr
	}
	if ch, ok := m.channels[channelID]; ok {
		return ch, nil
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendAttempts++
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sentMessages = append(m.sentMessages, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: "msg-123"}, nil
}

func (m *mockSession) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return nil, m.editErr
	}
	m.edits = append(m.edits, channelEdit{channelID: channelID, data: data})
	return &discordgo.Channel{ID: channelID}, nil
}

// optsContext recovers the request context an adapter call attached via
// discordgo.WithContext, the same way discordgo applies options to a request.
func optsContext(options []discordgo.RequestOption) context.Context {
	req, _ := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	cfg := &discordgo.RequestConfig{Request: req}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg.Request.Context()
}

func (m *mockSession) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	delay := m.permDelay
	m.mu.Unlock()

	if delay > 0 {
		ctx := optsContext(options)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.permErr != nil {
		return m.permErr
	}
	m.overwrites = append(m.overwrites, permissionOverwrite{
		channelID: channelID, targetID: targetID, targetType: targetType,
		allow: allow, deny: deny,
	})
	return nil
}

func connectedAdapter(t *testing.T, sess *mockSession) *Adapter {
	t.Helper()
	a, err := New(AdapterOpts{GuildID: "guild-1", Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(AdapterOpts{GuildID: "guild-1"})
	if err == nil {
		t.Fatal("expected error without token or session")
	}
	if !strings.Contains(err.Error(), "bot token is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "bot token is required")
	}
}

func TestNew_RequiresGuild(t *testing.T) {
	_, err := New(AdapterOpts{Session: newMockSession()})
	if err == nil {
		t.Fatal("expected error without guild ID")
	}
}

func TestConnect(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess)

	if !sess.opened {
		t.Error("session not opened")
	}
	// Connect is idempotent.
	if err := a.Connect(context.Background()); err != nil {
		t.Errorf("second Connect: %v", err)
	}
}

func TestConnect_OpenError(t *testing.T) {
	sess := newMockSession()
	sess.openErr = fmt.Errorf("gateway down")

	a, err := New(AdapterOpts{GuildID: "guild-1", Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
}

func TestOperations_RequireConnect(t *testing.T) {
	a, err := New(AdapterOpts{GuildID: "guild-1", Session: newMockSession()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	ctx := context.Background()
	if err := a.SendMessage(ctx, ref, "hello"); err == nil {
		t.Error("SendMessage should fail before Connect")
	}
	if err := a.LockChannel(ctx, ref); err == nil {
		t.Error("LockChannel should fail before Connect")
	}
}

func TestLockChannel(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess)

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	if err := a.LockChannel(context.Background(), ref); err != nil {
		t.Fatalf("LockChannel: %v", err)
	}

	if len(sess.overwrites) != 1 {
		t.Fatalf("recorded %d overwrites, want 1", len(sess.overwrites))
	}
	ow := sess.overwrites[0]
	if ow.channelID != "chan-1" {
		t.Errorf("channel = %q, want chan-1", ow.channelID)
	}
	// The @everyone role ID equals the guild ID.
	if ow.targetID != "guild-1" {
		t.Errorf("target = %q, want guild-1", ow.targetID)
	}
	if ow.targetType != discordgo.PermissionOverwriteTypeRole {
		t.Errorf("target type = %v, want role", ow.targetType)
	}
	if ow.deny != discordgo.PermissionSendMessages || ow.allow != 0 {
		t.Errorf("allow/deny = %d/%d, want 0/%d", ow.allow, ow.deny, discordgo.PermissionSendMessages)
	}
}

func TestLockChannel_DeadlineBoundsSlowCall(t *testing.T) {
	sess := newMockSession()
	sess.permDelay = 3 * time.Second
	a := connectedAdapter(t, sess)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := a.LockChannel(ctx, platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected deadline error from slow permission call")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed > time.Second {
		t.Errorf("LockChannel took %v; the deadline should have cut the call short", elapsed)
	}
}

func TestUnlockChannel(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess)

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	if err := a.UnlockChannel(context.Background(), ref); err != nil {
		t.Fatalf("UnlockChannel: %v", err)
	}

	if len(sess.overwrites) != 1 {
		t.Fatalf("recorded %d overwrites, want 1", len(sess.overwrites))
	}
	ow := sess.overwrites[0]
	if ow.allow != discordgo.PermissionSendMessages || ow.deny != 0 {
		t.Errorf("allow/deny = %d/%d, want %d/0", ow.allow, ow.deny, discordgo.PermissionSendMessages)
	}
}

func TestSetRateLimit(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess)

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	if err := a.SetRateLimit(context.Background(), ref, 30); err != nil {
		t.Fatalf("SetRateLimit: %v", err)
	}

	if len(sess.edits) != 1 {
		t.Fatalf("recorded %d edits, want 1", len(sess.edits))
	}
	edit := sess.edits[0]
	if edit.data.RateLimitPerUser == nil || *edit.data.RateLimitPerUser != 30 {
		t.Errorf("rate limit = %v, want 30", edit.data.RateLimitPerUser)
	}
}

func TestSetRateLimit_Negative(t *testing.T) {
	a := connectedAdapter(t, newMockSession())

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	if err := a.SetRateLimit(context.Background(), ref, -1); err == nil {
		t.Fatal("expected error for negative rate limit")
	}
}

func TestSendMessage(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess)

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	if err := a.SendMessage(context.Background(), ref, "It is here."); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if len(sess.sentMessages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sess.sentMessages))
	}
	if sess.sentMessages[0].content != "It is here." {
		t.Errorf("content = %q", sess.sentMessages[0].content)
	}
}

func TestSendMessage_EmptyText(t *testing.T) {
	a := connectedAdapter(t, newMockSession())

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	if err := a.SendMessage(context.Background(), ref, ""); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestValidateAccess(t *testing.T) {
	sess := newMockSession()
	sess.channels["chan-1"] = &discordgo.Channel{ID: "chan-1", GuildID: "guild-1"}
	sess.channels["chan-2"] = &discordgo.Channel{ID: "chan-2", GuildID: "guild-other"}
	a := connectedAdapter(t, sess)

	ctx := context.Background()
	ok, err := a.ValidateAccess(ctx, platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"})
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if !ok {
		t.Error("expected access to own-guild channel")
	}

	// Channel in a different guild is not ours.
	ok, err = a.ValidateAccess(ctx, platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-2"})
	if err != nil {
		t.Fatalf("ValidateAccess other guild: %v", err)
	}
	if ok {
		t.Error("expected no access to foreign-guild channel")
	}

	// Missing channel reports false without an error.
	ok, err = a.ValidateAccess(ctx, platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-missing"})
	if err != nil {
		t.Fatalf("ValidateAccess missing: %v", err)
	}
	if ok {
		t.Error("expected no access to missing channel")
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	sess := newMockSession()
	sess.sendErr = &discordgo.RESTError{Response: &http.Response{StatusCode: 429}}
	a := connectedAdapter(t, sess)
	a.baseBackoff = time.Millisecond
	a.maxBackoff = 2 * time.Millisecond

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	err := a.SendMessage(context.Background(), ref, "hello")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if sess.sendAttempts != maxRetries+1 {
		t.Errorf("attempted %d sends, want %d", sess.sendAttempts, maxRetries+1)
	}
}

func TestRetryOnRateLimit_NonRateLimitError(t *testing.T) {
	sess := newMockSession()
	sess.sendErr = fmt.Errorf("permanent failure")
	a := connectedAdapter(t, sess)
	a.baseBackoff = time.Millisecond

	ref := platform.ChannelRef{GuildID: "guild-1", ChannelID: "chan-1"}
	if err := a.SendMessage(context.Background(), ref, "hello"); err == nil {
		t.Fatal("expected error")
	}
	if sess.sendAttempts != 1 {
		t.Errorf("attempted %d sends, want 1 (no retry on non-429)", sess.sendAttempts)
	}
}

func TestClose(t *testing.T) {
	sess := newMockSession()
	a := connectedAdapter(t, sess)

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sess.closeCalled {
		t.Error("session not closed")
	}
	// Close is idempotent.
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	// Operations after close fail.
	if err := a.Connect(context.Background()); err == nil {
		t.Error("Connect after Close should fail")
	}
}
