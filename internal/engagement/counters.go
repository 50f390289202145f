package engagement

import (
	"context"
	"fmt"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// derivedCounter pairs a stored counter with the correlated subquery that
// recomputes it from join rows.
type derivedCounter struct {
	counter
	source string
}

func (d derivedCounter) name() string {
	return d.table + "." + d.column
}

var derivedCounters = []derivedCounter{
	{videoLikes, "SELECT COUNT(*) FROM likes WHERE likes.kind = 'video' AND likes.target_id = videos.id AND likes.deleted_at IS NULL"},
	{videoComments, "SELECT COUNT(*) FROM comments WHERE comments.target_kind = 'video' AND comments.target_id = videos.id AND comments.deleted_at IS NULL"},
	{videoViews, "SELECT COUNT(*) FROM views WHERE views.video_id = videos.id"},
	{postLikes, "SELECT COUNT(*) FROM likes WHERE likes.kind = 'post' AND likes.target_id = posts.id AND likes.deleted_at IS NULL"},
	{postComments, "SELECT COUNT(*) FROM comments WHERE comments.target_kind = 'post' AND comments.target_id = posts.id AND comments.deleted_at IS NULL"},
	{commentLikes, "SELECT COUNT(*) FROM likes WHERE likes.kind = 'comment' AND likes.target_id = comments.id AND likes.deleted_at IS NULL"},
	{channelSubsCount, "SELECT COUNT(*) FROM subscriptions WHERE subscriptions.channel_id = users.id AND subscriptions.deleted_at IS NULL"},
}

// Drift is one row whose stored counter disagrees with its join rows.
type Drift struct {
	Counter string `json:"counter"`
	ID      string `json:"id"`
	Stored  int64  `json:"stored"`
	Actual  int64  `json:"actual"`
}

// FindDrift lists every counter that no longer matches its join rows. The
// scan takes no locks, so a toggle committing while it runs can show up as
// drift. Treat the result as candidates for ReconcileDrift.
func (s *Service) FindDrift(ctx context.Context) ([]Drift, error) {
	var all []Drift
	for _, dc := range derivedCounters {
		var rows []Drift
		query := fmt.Sprintf("SELECT id, %[2]s AS stored, (%[3]s) AS actual FROM %[1]s WHERE %[2]s <> (%[3]s)",
			dc.table, dc.column, dc.source)
		if err := s.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("scan %s: %w", dc.name(), err)
		}
		for i := range rows {
			rows[i].Counter = dc.name()
		}
		all = append(all, rows...)
	}
	return all, nil
}

// ReconcileCounters finds drift and repairs it. It returns how many rows
// each counter fixed.
func (s *Service) ReconcileCounters(ctx context.Context) (map[string]int64, error) {
	drift, err := s.FindDrift(ctx)
	if err != nil {
		return nil, err
	}
	return s.ReconcileDrift(ctx, drift)
}

// ReconcileDrift repairs the rows named by drift, one transaction per row.
// Each row is locked before it is recounted, so a toggle in flight either
// commits first and is counted, or waits and applies its delta on top.
// Entries that no longer disagree once locked are left alone.
func (s *Service) ReconcileDrift(ctx context.Context, drift []Drift) (map[string]int64, error) {
	byName := make(map[string]derivedCounter, len(derivedCounters))
	for _, dc := range derivedCounters {
		byName[dc.name()] = dc
	}

	fixed := make(map[string]int64)
	for _, d := range drift {
		dc, ok := byName[d.Counter]
		if !ok {
			return fixed, fmt.Errorf("reconcile %s: unknown counter", d.Counter)
		}
		changed, err := s.reconcileRow(ctx, dc, d.ID)
		if err != nil {
			return fixed, fmt.Errorf("reconcile %s %s: %w", d.Counter, d.ID, err)
		}
		if !changed {
			logger.Log.Debug("Counter drift resolved before repair",
				zap.String("counter", d.Counter), zap.String("id", d.ID))
			continue
		}
		fixed[d.Counter]++
		metrics.Get().CounterDriftTotal.WithLabelValues(d.Counter).Inc()
	}

	for name, n := range fixed {
		logger.Log.Warn("Counter drift reconciled", zap.String("counter", name), zap.Int64("rows", n))
	}
	return fixed, nil
}

func (s *Service) reconcileRow(ctx context.Context, dc derivedCounter, id string) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored []int64
		if err := tx.Table(dc.table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Pluck(dc.column, &stored).Error; err != nil {
			return err
		}
		if len(stored) == 0 {
			return nil
		}

		var actual int64
		recount := fmt.Sprintf("SELECT (%s) FROM %s WHERE %s.id = ?", dc.source, dc.table, dc.table)
		if err := tx.Raw(recount, id).Scan(&actual).Error; err != nil {
			return err
		}
		if actual == stored[0] {
			return nil
		}

		if err := tx.Table(dc.table).Where("id = ?", id).UpdateColumn(dc.column, actual).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}
