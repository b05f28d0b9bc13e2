package release

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/platform"
	"github.com/veilworks/rite/internal/ritual"
	"github.com/veilworks/rite/internal/stage"
	"gorm.io/gorm"
)

// defaultCallTimeout bounds each individual platform call during automation.
const defaultCallTimeout = 8 * time.Second

// Orchestrator validates and commits stage transitions. Platform automation
// is best-effort: a failed or timed-out call degrades the automation report
// but never blocks the commit.
type Orchestrator struct {
	db          *gorm.DB
	provider    platform.Provider
	callTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-release advance locks
}

// OrchestratorOpts holds parameters for creating an Orchestrator.
type OrchestratorOpts struct {
	DB          *gorm.DB
	Provider    platform.Provider // nil disables platform automation entirely
	CallTimeout time.Duration     // per platform call; defaults to 8s
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts OrchestratorOpts) (*Orchestrator, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("release: db is required")
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Orchestrator{
		db:          opts.DB,
		provider:    opts.Provider,
		callTimeout: timeout,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// AdvanceResult reports a committed transition. Automation distinguishes
// full from partial automation: an empty Degraded list means every
// configured platform call succeeded.
type AdvanceResult struct {
	Release    *models.ReleaseInstance
	Transition *models.StateTransition
	Automation platform.AutomationReport
}

// Advance moves a release to the target stage.
//
// The transition is validated against the release's template graph; an
// invalid target returns ErrInvalidTransition with nothing written. Ritual
// automation for the departing and arriving stages runs best-effort before
// the commit. The commit itself is atomic and guarded against concurrent
// movers: the losing caller receives ErrConflict.
func (o *Orchestrator) Advance(ctx context.Context, releaseID, target, notes string) (*AdvanceResult, error) {
	targetStage, err := stage.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("release: %q: %w", target, ErrInvalidTransition)
	}

	// Held across automation and commit so the audit row records exactly
	// what the platform calls achieved for this transition.
	lock := o.releaseLock(releaseID)
	lock.Lock()
	defer lock.Unlock()

	var rel models.ReleaseInstance
	if err := o.db.Where("id = ?", releaseID).First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("release: %s: %w", releaseID, ErrReleaseNotFound)
		}
		return nil, fmt.Errorf("release: load %s: %w", releaseID, err)
	}

	g, err := loadGraph(o.db, rel.TemplateID)
	if err != nil {
		return nil, err
	}

	fromStage := stage.Stage(rel.CurrentStage)
	if !g.IsValidTransition(fromStage, targetStage) {
		return nil, fmt.Errorf("release: %s -> %s: %w", fromStage, targetStage, ErrInvalidTransition)
	}

	fromRitual, err := ritual.Resolve(o.db, rel.TenantID, rel.TemplateID, fromStage.String())
	if err != nil {
		return nil, err
	}
	toRitual, err := ritual.Resolve(o.db, rel.TenantID, rel.TemplateID, targetStage.String())
	if err != nil {
		return nil, err
	}

	report := o.automate(ctx, &rel, fromRitual, toRitual)

	now := time.Now().UTC()
	transition := models.StateTransition{
		ReleaseID:      rel.ID,
		FromStage:      fromStage.String(),
		ToStage:        targetStage.String(),
		Reason:         "Manual",
		Notes:          notes,
		ChannelsOpened: strings.Join(report.Opened, ","),
		ChannelsLocked: strings.Join(report.Locked, ","),
		Degraded:       strings.Join(report.Degraded, "; "),
		OccurredAt:     now,
	}

	newStatus := deriveStatus(rel.Status, targetStage)

	err = o.db.Transaction(func(tx *gorm.DB) error {
		// Optimistic guard: commit only if the release is still at the
		// stage we validated against.
		res := tx.Model(&models.ReleaseInstance{}).
			Where("id = ? AND current_stage = ?", rel.ID, fromStage.String()).
			Updates(map[string]interface{}{
				"current_stage": targetStage.String(),
				"status":        newStatus,
			})
		if res.Error != nil {
			return fmt.Errorf("release: update %s: %w", rel.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("release: %s moved from %s: %w", rel.ID, fromStage, ErrConflict)
		}

		if err := tx.Model(&models.StageExecution{}).
			Where("release_id = ? AND stage_name = ? AND status = ?", rel.ID, fromStage.String(), "Active").
			Updates(map[string]interface{}{
				"status":       "Completed",
				"completed_at": now,
			}).Error; err != nil {
			return fmt.Errorf("release: complete execution %s/%s: %w", rel.ID, fromStage, err)
		}

		if err := tx.Model(&models.StageExecution{}).
			Where("release_id = ? AND stage_name = ?", rel.ID, targetStage.String()).
			Updates(map[string]interface{}{
				"status":     "Active",
				"started_at": now,
			}).Error; err != nil {
			return fmt.Errorf("release: activate execution %s/%s: %w", rel.ID, targetStage, err)
		}

		if err := tx.Create(&transition).Error; err != nil {
			return fmt.Errorf("release: record transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := Get(o.db, rel.ID)
	if err != nil {
		return nil, err
	}
	return &AdvanceResult{
		Release:    updated,
		Transition: &transition,
		Automation: report,
	}, nil
}

// deriveStatus applies the release status lifecycle: the first move off
// Draft schedules the release; entering Archive or Archived archives it.
func deriveStatus(current string, target stage.Stage) string {
	status := current
	if status == "Draft" && target != stage.Draft {
		status = "Scheduled"
	}
	if target == stage.Archive || target == stage.Archived {
		status = "Archived"
	}
	return status
}

// automate performs the platform side effects for a transition: close out
// the departing stage's channel, then open the arriving stage's channel.
// Every sub-step is individually tolerant; failures are logged and recorded
// as degradation.
func (o *Orchestrator) automate(ctx context.Context, rel *models.ReleaseInstance, fromRitual, toRitual *models.RitualMapping) platform.AutomationReport {
	var report platform.AutomationReport

	if fromRitual == nil && toRitual == nil {
		return report
	}
	if o.provider == nil {
		return report
	}

	cfg, channels, err := o.loadPlatform(rel.TenantID)
	if err != nil {
		log.Printf("release: load platform config for tenant %s: %v", rel.TenantID, err)
		report.Degrade("platform config: %v", err)
		return report
	}
	if cfg == nil {
		// No active platform configuration: the transition proceeds
		// without automation.
		return report
	}

	adapter, err := o.provider.AdapterFor(ctx, cfg)
	if err != nil {
		log.Printf("release: adapter for tenant %s: %v", rel.TenantID, err)
		report.Degrade("adapter: %v", err)
		return report
	}

	// Close out the departing stage.
	if fromRitual != nil {
		if ref, ok := resolveChannel(cfg, channels, fromRitual.ChannelPurpose); ok {
			if fromRitual.AutoLock {
				if err := o.call(ctx, func(ctx context.Context) error {
					return adapter.LockChannel(ctx, ref)
				}); err != nil {
					log.Printf("release: lock %s: %v", ref.ChannelID, err)
					report.Degrade("lock %s: %v", ref.ChannelID, err)
				} else {
					report.Locked = append(report.Locked, ref.ChannelID)
				}
			}
			if fromRitual.ClosingMessage != "" {
				if err := o.call(ctx, func(ctx context.Context) error {
					return adapter.SendMessage(ctx, ref, fromRitual.ClosingMessage)
				}); err != nil {
					log.Printf("release: closing message to %s: %v", ref.ChannelID, err)
					report.Degrade("closing message %s: %v", ref.ChannelID, err)
				}
			}
		}
	}

	// Open the arriving stage. An unprovisioned channel purpose is skipped
	// silently: the tenant simply has not mapped that purpose yet.
	if toRitual != nil {
		if ref, ok := resolveChannel(cfg, channels, toRitual.ChannelPurpose); ok {
			if toRitual.AutoUnlock {
				if err := o.call(ctx, func(ctx context.Context) error {
					return adapter.UnlockChannel(ctx, ref)
				}); err != nil {
					log.Printf("release: unlock %s: %v", ref.ChannelID, err)
					report.Degrade("unlock %s: %v", ref.ChannelID, err)
				} else {
					report.Opened = append(report.Opened, ref.ChannelID)
				}
			}
			if toRitual.RateLimitSeconds > 0 {
				if err := o.call(ctx, func(ctx context.Context) error {
					return adapter.SetRateLimit(ctx, ref, toRitual.RateLimitSeconds)
				}); err != nil {
					log.Printf("release: rate limit on %s: %v", ref.ChannelID, err)
					report.Degrade("rate limit %s: %v", ref.ChannelID, err)
				}
			}
			if toRitual.AnnouncementMessage != "" {
				if err := o.call(ctx, func(ctx context.Context) error {
					return adapter.SendMessage(ctx, ref, toRitual.AnnouncementMessage)
				}); err != nil {
					log.Printf("release: announcement to %s: %v", ref.ChannelID, err)
					report.Degrade("announcement %s: %v", ref.ChannelID, err)
				}
			}
		}
	}

	return report
}

// loadPlatform returns the tenant's active platform config and channel
// directory, or nil config when the tenant has none.
func (o *Orchestrator) loadPlatform(tenantID string) (*models.PlatformConfig, []models.PlatformChannel, error) {
	var cfg models.PlatformConfig
	if err := o.db.Preload("Channels").
		Where("tenant_id = ? AND active = ?", tenantID, true).
		First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &cfg, cfg.Channels, nil
}

// resolveChannel maps a logical channel purpose to a concrete channel ref
// via the tenant's channel directory.
func resolveChannel(cfg *models.PlatformConfig, channels []models.PlatformChannel, purpose string) (platform.ChannelRef, bool) {
	if purpose == "" {
		return platform.ChannelRef{}, false
	}
	for _, ch := range channels {
		if ch.Purpose == purpose {
			return platform.ChannelRef{GuildID: cfg.GuildID, ChannelID: ch.ChannelID}, true
		}
	}
	return platform.ChannelRef{}, false
}

// call runs one platform operation under the per-call timeout. A timeout is
// treated identically to a failed call.
func (o *Orchestrator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return fn(callCtx)
}

// releaseLock returns the advance mutex for a release, creating it on
// first use.
func (o *Orchestrator) releaseLock(releaseID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[releaseID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[releaseID] = lock
	}
	return lock
}
