package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sitepulse/siteqc/internal/qc/entity"
	"github.com/sitepulse/siteqc/internal/qc/repository"
	"github.com/sitepulse/siteqc/internal/qc/testutil"
)

func seedDefectEnv(t *testing.T, env *testEnv) (*entity.Project, *entity.Task) {
	t.Helper()
	manager := testutil.SeedUser(t, env.db, "pm", entity.RoleProjectManager)
	project := testutil.SeedProject(t, env.db, "defect project", manager.ID)
	task := testutil.SeedTask(t, env.db, project.ID, "waterproofing", nil)
	return project, task
}

func TestEscalateStrictlyIncreasing(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	defect := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, nil)

	// low -> high skipping a rung is still strictly increasing, allowed
	err := env.defect.Escalate(ctx, defect.ID, EscalateRequest{
		EscalatedBy: 1, NewSeverity: entity.SeverityHigh, Reason: "recurring leak",
	})
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}

	got, _ := env.defect.GetByID(ctx, defect.ID)
	if got.Severity != entity.SeverityHigh {
		t.Errorf("Expected high, got %s", got.Severity)
	}
	if got.EscalationLevel != 1 {
		t.Errorf("Expected level 1, got %d", got.EscalationLevel)
	}

	histories, _ := env.defect.History(ctx, defect.ID)
	if len(histories) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(histories))
	}
	h := histories[0]
	if h.FromSeverity != entity.SeverityLow || h.ToSeverity != entity.SeverityHigh {
		t.Errorf("Expected low->high, got %s->%s", h.FromSeverity, h.ToSeverity)
	}
	if entity.SeverityRank(h.ToSeverity) <= entity.SeverityRank(h.FromSeverity) {
		t.Error("History must record a strictly increasing transition")
	}

	// same or lower severity is rejected
	for _, sev := range []string{entity.SeverityHigh, entity.SeverityMedium, entity.SeverityLow} {
		err = env.defect.Escalate(ctx, defect.ID, EscalateRequest{EscalatedBy: 1, NewSeverity: sev})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Escalate to %s: expected ErrInvalidTransition, got %v", sev, err)
		}
	}

	err = env.defect.Escalate(ctx, defect.ID, EscalateRequest{EscalatedBy: 1, NewSeverity: "extreme"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for unknown severity, got %v", err)
	}
}

func TestEscalateCriticalAlwaysRejected(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	defect := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityCritical, nil)

	err := env.defect.Escalate(ctx, defect.ID, EscalateRequest{
		EscalatedBy: 1, NewSeverity: entity.SeverityCritical,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	got, _ := env.defect.GetByID(ctx, defect.ID)
	if got.EscalationLevel != 0 {
		t.Errorf("Escalation level must be unchanged, got %d", got.EscalationLevel)
	}
	histories, _ := env.defect.History(ctx, defect.ID)
	if len(histories) != 0 {
		t.Errorf("Expected no history, got %d entries", len(histories))
	}
}

func TestEscalateMissingDefect(t *testing.T) {
	env := newTestEnv(t)
	err := env.defect.Escalate(context.Background(), 999999, EscalateRequest{
		EscalatedBy: 1, NewSeverity: entity.SeverityHigh,
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	err = env.defect.Escalate(context.Background(), 0, EscalateRequest{
		EscalatedBy: 1, NewSeverity: entity.SeverityHigh,
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

// Two consecutive sweeps walk an overdue defect up one rung each time
func TestOverdueSweepClimbsTheLadder(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	due := env.now.Add(-48 * time.Hour)
	defect := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, &due)

	escalated, err := env.defect.CheckAndEscalateOverdueDefects(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if escalated != 1 {
		t.Errorf("Expected 1 escalation, got %d", escalated)
	}
	got, _ := env.defect.GetByID(ctx, defect.ID)
	if got.Severity != entity.SeverityMedium || got.EscalationLevel != 1 {
		t.Errorf("Expected medium/level 1, got %s/%d", got.Severity, got.EscalationLevel)
	}

	// still overdue: second sweep climbs to high
	if _, err := env.defect.CheckAndEscalateOverdueDefects(ctx); err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	got, _ = env.defect.GetByID(ctx, defect.ID)
	if got.Severity != entity.SeverityHigh || got.EscalationLevel != 2 {
		t.Errorf("Expected high/level 2, got %s/%d", got.Severity, got.EscalationLevel)
	}

	histories, _ := env.defect.History(ctx, defect.ID)
	if len(histories) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(histories))
	}
	for _, h := range histories {
		if h.Reason != "overdue - due date passed" {
			t.Errorf("Expected overdue reason, got %q", h.Reason)
		}
		if d := h.EscalatedAt.Sub(env.now); d > time.Second || d < -time.Second {
			t.Errorf("Expected escalated_at from injected clock, got %v", h.EscalatedAt)
		}
	}
}

// Critical defects are skipped silently; other defects still escalate
func TestOverdueSweepSkipsCritical(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	due := env.now.Add(-time.Hour)
	critical := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityCritical, &due)
	low := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, &due)

	escalated, err := env.defect.CheckAndEscalateOverdueDefects(ctx)
	if err != nil {
		t.Fatalf("Sweep must not fail on critical defects: %v", err)
	}
	if escalated != 1 {
		t.Errorf("Expected 1 escalation, got %d", escalated)
	}

	gotCritical, _ := env.defect.GetByID(ctx, critical.ID)
	if gotCritical.Severity != entity.SeverityCritical || gotCritical.EscalationLevel != 0 {
		t.Errorf("Critical defect must be untouched, got %s/%d", gotCritical.Severity, gotCritical.EscalationLevel)
	}
	gotLow, _ := env.defect.GetByID(ctx, low.ID)
	if gotLow.Severity != entity.SeverityMedium {
		t.Errorf("Expected low defect escalated to medium, got %s", gotLow.Severity)
	}
}

func TestOverdueSweepIgnoresFutureAndClosed(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	future := env.now.Add(24 * time.Hour)
	testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, &future)

	past := env.now.Add(-24 * time.Hour)
	resolved := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, &past)
	env.db.Model(&entity.Defect{}).Where("id = ?", resolved.ID).
		Update("status", entity.DefectStatusResolved)

	escalated, err := env.defect.CheckAndEscalateOverdueDefects(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if escalated != 0 {
		t.Errorf("Expected no escalations, got %d", escalated)
	}
}

func TestResolveAndCloseLifecycle(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	defect := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityMedium, nil)

	// close before resolve is rejected
	if err := env.defect.Close(ctx, defect.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	if err := env.defect.Resolve(ctx, defect.ID, 1); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got, _ := env.defect.GetByID(ctx, defect.ID)
	if got.Status != entity.DefectStatusResolved {
		t.Errorf("Expected resolved, got %s", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Error("Expected resolved_at to be set")
	}

	// terminal states cannot be escalated
	err := env.defect.Escalate(ctx, defect.ID, EscalateRequest{EscalatedBy: 1, NewSeverity: entity.SeverityHigh})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for resolved defect, got %v", err)
	}

	if err := env.defect.Close(ctx, defect.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	got, _ = env.defect.GetByID(ctx, defect.ID)
	if got.Status != entity.DefectStatusClosed {
		t.Errorf("Expected closed, got %s", got.Status)
	}

	// resolve on a closed defect is rejected
	if err := env.defect.Resolve(ctx, defect.ID, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestDefectStats(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, nil)
	testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, nil)
	testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityCritical, nil)
	closed := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityHigh, nil)
	env.db.Model(&entity.Defect{}).Where("id = ?", closed.ID).
		Update("status", entity.DefectStatusClosed)

	stats, err := env.defect.StatsByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("StatsByProject failed: %v", err)
	}
	if stats[entity.SeverityLow] != 2 {
		t.Errorf("Expected 2 low, got %d", stats[entity.SeverityLow])
	}
	if stats[entity.SeverityCritical] != 1 {
		t.Errorf("Expected 1 critical, got %d", stats[entity.SeverityCritical])
	}
	if stats[entity.SeverityHigh] != 0 {
		t.Errorf("Closed defects must not be counted, got %d high", stats[entity.SeverityHigh])
	}
}

func TestEscalateConcurrentKeepsLadderMonotonic(t *testing.T) {
	env := newTestEnv(t)
	project, task := seedDefectEnv(t, env)
	ctx := context.Background()

	defect := testutil.SeedDefect(t, env.db, project.ID, task.ID, entity.SeverityLow, nil)

	// two racing escalations from the same starting severity; the loser
	// must re-validate against the committed severity under the row lock
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, sev := range []string{entity.SeverityMedium, entity.SeverityHigh} {
		wg.Add(1)
		go func(i int, sev string) {
			defer wg.Done()
			results[i] = env.defect.Escalate(ctx, defect.ID, EscalateRequest{
				EscalatedBy: int64(i + 1), NewSeverity: sev, Reason: "race",
			})
		}(i, sev)
	}
	wg.Wait()

	// low->high always wins regardless of ordering; low->medium only
	// succeeds if it committed first
	if results[1] != nil {
		t.Fatalf("Escalation to high must succeed: %v", results[1])
	}
	if results[0] != nil && !errors.Is(results[0], ErrInvalidTransition) {
		t.Fatalf("Losing escalation must fail the ladder check, got %v", results[0])
	}

	got, err := env.defect.GetByID(ctx, defect.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Severity != entity.SeverityHigh {
		t.Errorf("Expected high after racing escalations, got %s", got.Severity)
	}

	histories, _ := env.defect.History(ctx, defect.ID)
	if got.EscalationLevel != len(histories) {
		t.Errorf("Level %d does not match %d history entries", got.EscalationLevel, len(histories))
	}
	prev := entity.SeverityLow
	for _, h := range histories {
		if h.FromSeverity != prev {
			t.Errorf("History must chain: expected from=%s, got %s", prev, h.FromSeverity)
		}
		if entity.SeverityRank(h.ToSeverity) <= entity.SeverityRank(h.FromSeverity) {
			t.Errorf("Non-increasing transition recorded: %s->%s", h.FromSeverity, h.ToSeverity)
		}
		prev = h.ToSeverity
	}
	if prev != entity.SeverityHigh {
		t.Errorf("Chain must end at high, got %s", prev)
	}
}
