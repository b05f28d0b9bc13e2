package tenant

import (
	"strings"
	"testing"

	ritedb "github.com/veilworks/rite/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := ritedb.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func TestCreate(t *testing.T) {
	db := testDB(t)

	ten, err := Create(db, CreateOpts{Name: "Mary & the Arsonist", Slug: "mary"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(ten.ID, "ten-") {
		t.Errorf("expected ten- prefix, got %q", ten.ID)
	}
	if !ten.Active {
		t.Error("expected new tenant to be active")
	}
}

func TestCreateValidation(t *testing.T) {
	db := testDB(t)

	if _, err := Create(db, CreateOpts{Slug: "mary"}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := Create(db, CreateOpts{Name: "Mary"}); err == nil {
		t.Error("expected error for missing slug")
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	db := testDB(t)

	if _, err := Create(db, CreateOpts{Name: "Mary", Slug: "mary"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := Create(db, CreateOpts{Name: "Other", Slug: "mary"}); err == nil {
		t.Error("expected error for duplicate slug")
	}
}

func TestGetBySlug(t *testing.T) {
	db := testDB(t)

	ten, err := Create(db, CreateOpts{Name: "Mary", Slug: "mary"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := SetPlatform(db, ten.ID, PlatformOpts{Platform: "discord", GuildID: "guild-1", BotToken: "tok"}); err != nil {
		t.Fatalf("SetPlatform failed: %v", err)
	}
	if _, err := AddChannel(db, ten.ID, ChannelOpts{Purpose: "signal", ChannelID: "chan-1"}); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}

	got, err := GetBySlug(db, "mary")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.Platform == nil {
		t.Fatal("expected platform config to be preloaded")
	}
	if len(got.Platform.Channels) != 1 {
		t.Errorf("expected 1 channel, got %d", len(got.Platform.Channels))
	}

	if _, err := GetBySlug(db, "nobody"); err == nil {
		t.Error("expected error for unknown slug")
	}
}

func TestSetPlatform(t *testing.T) {
	db := testDB(t)

	ten, err := Create(db, CreateOpts{Name: "Mary", Slug: "mary"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := SetPlatform(db, ten.ID, PlatformOpts{Platform: "irc", BotToken: "tok"}); err == nil {
		t.Error("expected error for unsupported platform")
	}
	if _, err := SetPlatform(db, ten.ID, PlatformOpts{Platform: "discord"}); err == nil {
		t.Error("expected error for missing token")
	}

	cfg, err := SetPlatform(db, ten.ID, PlatformOpts{Platform: "discord", GuildID: "guild-1", BotToken: "tok"})
	if err != nil {
		t.Fatalf("SetPlatform failed: %v", err)
	}

	// Replacing the config updates in place rather than adding a row.
	cfg2, err := SetPlatform(db, ten.ID, PlatformOpts{Platform: "slack", BotToken: "xoxb-tok"})
	if err != nil {
		t.Fatalf("SetPlatform update failed: %v", err)
	}
	if cfg2.ID != cfg.ID {
		t.Errorf("expected config to be updated in place, got new ID %d", cfg2.ID)
	}
	if cfg2.Platform != "slack" {
		t.Errorf("expected platform slack, got %q", cfg2.Platform)
	}
}

func TestAddChannelUpsert(t *testing.T) {
	db := testDB(t)

	ten, err := Create(db, CreateOpts{Name: "Mary", Slug: "mary"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := AddChannel(db, ten.ID, ChannelOpts{Purpose: "signal", ChannelID: "chan-1"}); err == nil {
		t.Error("expected error when no platform config exists")
	}

	if _, err := SetPlatform(db, ten.ID, PlatformOpts{Platform: "discord", GuildID: "guild-1", BotToken: "tok"}); err != nil {
		t.Fatalf("SetPlatform failed: %v", err)
	}

	if _, err := AddChannel(db, ten.ID, ChannelOpts{Purpose: "signal", ChannelID: "chan-1", Visibility: "L2"}); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	ch, err := AddChannel(db, ten.ID, ChannelOpts{Purpose: "signal", ChannelID: "chan-2", Visibility: "L3"})
	if err != nil {
		t.Fatalf("AddChannel update failed: %v", err)
	}
	if ch.ChannelID != "chan-2" {
		t.Errorf("expected channel ID to be replaced, got %q", ch.ChannelID)
	}

	channels, err := ListChannels(db, ten.ID)
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != 1 {
		t.Errorf("expected purpose to stay unique, got %d channels", len(channels))
	}
}

func TestAddChannelValidation(t *testing.T) {
	db := testDB(t)

	ten, err := Create(db, CreateOpts{Name: "Mary", Slug: "mary"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := SetPlatform(db, ten.ID, PlatformOpts{Platform: "discord", BotToken: "tok"}); err != nil {
		t.Fatalf("SetPlatform failed: %v", err)
	}

	if _, err := AddChannel(db, ten.ID, ChannelOpts{ChannelID: "chan-1"}); err == nil {
		t.Error("expected error for missing purpose")
	}
	if _, err := AddChannel(db, ten.ID, ChannelOpts{Purpose: "signal"}); err == nil {
		t.Error("expected error for missing channel ID")
	}
}

func TestList(t *testing.T) {
	db := testDB(t)

	for _, slug := range []string{"zeta", "alpha"} {
		if _, err := Create(db, CreateOpts{Name: slug, Slug: slug}); err != nil {
			t.Fatalf("Create %s failed: %v", slug, err)
		}
	}

	tenants, err := List(db)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tenants) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(tenants))
	}
	if tenants[0].Slug != "alpha" {
		t.Errorf("expected slug ordering, got %q first", tenants[0].Slug)
	}

	channels, err := ListChannels(db, "ten-nope")
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if channels != nil {
		t.Errorf("expected nil channels for tenant without config, got %v", channels)
	}
}
