package digest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/veilworks/rite/internal/platform"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Scheduler posts a tenant's daily digest to a platform channel on a cron
// schedule. Posting is best-effort: a failed post is logged and retried at
// the next fire time.
type Scheduler struct {
	db       *gorm.DB
	adapter  platform.Adapter
	channel  platform.ChannelRef
	tenantID string
	cronExpr string
	out      io.Writer
}

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	DB       *gorm.DB
	Adapter  platform.Adapter
	Channel  platform.ChannelRef
	TenantID string
	Cron     string    // 5-field cron expression, e.g. "0 9 * * *"
	Out      io.Writer // defaults to os.Stdout
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("digest: db is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("digest: adapter is required")
	}
	if opts.TenantID == "" {
		return nil, fmt.Errorf("digest: tenant is required")
	}
	if _, err := cronParser.Parse(opts.Cron); err != nil {
		return nil, fmt.Errorf("digest: invalid cron expression %q: %w", opts.Cron, err)
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Scheduler{
		db:       opts.DB,
		adapter:  opts.Adapter,
		channel:  opts.Channel,
		tenantID: opts.TenantID,
		cronExpr: opts.Cron,
		out:      out,
	}, nil
}

// Run blocks until the context is cancelled, posting the daily digest at
// each cron fire time.
func (s *Scheduler) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "digest: scheduled %q for tenant %s\n", s.cronExpr, s.tenantID)
	for {
		wait := nextCronDuration(s.cronExpr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := s.Post(ctx); err != nil {
			log.Printf("digest: post for tenant %s: %v", s.tenantID, err)
		}
	}
}

// Post builds and sends the daily digest once. Empty reports are suppressed.
func (s *Scheduler) Post(ctx context.Context) error {
	report, err := BuildDaily(s.db, s.tenantID)
	if err != nil {
		return err
	}
	if report.Empty() {
		return nil
	}
	if err := s.adapter.SendMessage(ctx, s.channel, report.Format()); err != nil {
		return fmt.Errorf("digest: send: %w", err)
	}
	return nil
}
