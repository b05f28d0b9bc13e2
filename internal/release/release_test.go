package release

import (
	"errors"
	"strings"
	"testing"

	ritedb "github.com/veilworks/rite/internal/db"
	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/stage"
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
		t.Fatalf("open test db: %v", err)
	}
	if err := ritedb.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seedTenant creates a tenant with the canonical template.
func seedTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()
	tenant := models.Tenant{ID: "ten-abc12", Name: "Mary", Slug: "mary", Active: true}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if _, err := ritedb.SeedTemplate(db, tenant.ID, "tpl-abc12", "Canonical Cycle"); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return &tenant
}

func TestCreate(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db)

	rel, err := Create(db, "mary", CreateOpts{Key: "S1E1", Title: "First Drop"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(rel.ID, "rel-") {
		t.Errorf("ID = %q, want rel- prefix", rel.ID)
	}
	if rel.CurrentStage != stage.Draft.String() {
		t.Errorf("stage = %q, want Draft", rel.CurrentStage)
	}
	if rel.Status != "Draft" {
		t.Errorf("status = %q, want Draft", rel.Status)
	}
	if len(rel.Executions) != len(stage.Canonical) {
		t.Fatalf("created %d executions, want %d", len(rel.Executions), len(stage.Canonical))
	}
	for _, exec := range rel.Executions {
		if exec.Status != "Pending" {
			t.Errorf("execution %s status = %q, want Pending", exec.StageName, exec.Status)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db)

	if _, err := Create(db, "mary", CreateOpts{Title: "no key"}); err == nil {
		t.Error("expected error without key")
	}
	if _, err := Create(db, "mary", CreateOpts{Key: "S1E1"}); err == nil {
		t.Error("expected error without title")
	}
}

func TestCreate_TenantNotFound(t *testing.T) {
	db := testDB(t)

	_, err := Create(db, "nobody", CreateOpts{Key: "S1E1", Title: "x"})
	if !errors.Is(err, ErrTenantNotFound) {
		t.Errorf("error = %v, want ErrTenantNotFound", err)
	}
}

func TestCreate_TemplateNotFound(t *testing.T) {
	db := testDB(t)
	tenant := models.Tenant{ID: "ten-abc12", Name: "Mary", Slug: "mary", Active: true}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	_, err := Create(db, "mary", CreateOpts{Key: "S1E1", Title: "x"})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("error = %v, want ErrTemplateNotFound", err)
	}
}

func TestCreate_DuplicateKey(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db)

	if _, err := Create(db, "mary", CreateOpts{Key: "S1E1", Title: "First"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := Create(db, "mary", CreateOpts{Key: "S1E1", Title: "Second"})
	if err == nil {
		t.Fatal("expected error for duplicate key")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "already exists")
	}
}

func TestCreate_RejectsUnknownTemplateStage(t *testing.T) {
	db := testDB(t)
	tenant := models.Tenant{ID: "ten-abc12", Name: "Mary", Slug: "mary", Active: true}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	tpl := models.ReleaseCycleTemplate{
		ID: "tpl-bad00", TenantID: tenant.ID, Name: "Broken", Active: true,
		Stages: []models.StageTemplate{
			{Name: "Draft", DisplayOrder: 0},
			{Name: "Liftoff", DisplayOrder: 1},
			{Name: "Archived", DisplayOrder: 2},
		},
	}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}

	_, err := Create(db, "mary", CreateOpts{Key: "S1E1", Title: "x"})
	if err == nil {
		t.Fatal("expected error for unknown stage in template")
	}
	if !strings.Contains(err.Error(), "unknown stage") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unknown stage")
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)

	_, err := Get(db, "rel-nope0")
	if !errors.Is(err, ErrReleaseNotFound) {
		t.Errorf("error = %v, want ErrReleaseNotFound", err)
	}
}

func TestList(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db)

	for _, key := range []string{"S1E1", "S1E2", "S1E3"} {
		if _, err := Create(db, "mary", CreateOpts{Key: key, Title: key}); err != nil {
			t.Fatalf("create %s: %v", key, err)
		}
	}

	all, err := List(db, ListFilters{TenantID: "ten-abc12"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("listed %d releases, want 3", len(all))
	}

	drafts, err := List(db, ListFilters{TenantID: "ten-abc12", Status: "Draft"})
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if len(drafts) != 3 {
		t.Errorf("listed %d drafts, want 3", len(drafts))
	}

	none, err := List(db, ListFilters{TenantID: "ten-other"})
	if err != nil {
		t.Fatalf("List other tenant: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("listed %d releases for other tenant, want 0", len(none))
	}
}

func TestNextStages(t *testing.T) {
	db := testDB(t)
	seedTenant(t, db)

	rel, err := Create(db, "mary", CreateOpts{Key: "S1E1", Title: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	next, err := NextStages(db, rel.ID)
	if err != nil {
		t.Fatalf("NextStages: %v", err)
	}
	want := []stage.Stage{stage.Scheduled, stage.Archived}
	if len(next) != len(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	for i := range want {
		if next[i] != want[i] {
			t.Errorf("next[%d] = %s, want %s", i, next[i], want[i])
		}
	}
}

func TestHistory_NotFound(t *testing.T) {
	db := testDB(t)

	_, err := History(db, "rel-nope0")
	if !errors.Is(err, ErrReleaseNotFound) {
		t.Errorf("error = %v, want ErrReleaseNotFound", err)
	}
}
