package analytics

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics/entity"
	eventrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics/repo"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
)

const (
	week        = 7 * 24 * time.Hour
	topLinksMax = 5
)

// Service aggregates a user's events into a Summary.
type Service struct {
	store  *database.Store
	events *eventrepo.EventRepo
	now    func() time.Time
}

func NewService(store *database.Store) *Service {
	return &Service{
		store:  store,
		events: eventrepo.NewEventRepo(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetSummary runs the independent aggregate queries concurrently.
func (s *Service) GetSummary(ctx context.Context, userID string) (*entity.Summary, error) {
	now := s.now()
	weekStart := now.Add(-week)
	prevStart := now.Add(-2 * week)

	var (
		sum                   entity.Summary
		viewsPrev, clicksPrev int64
	)
	g, gctx := errgroup.WithContext(ctx)
	run := func(fn func(q database.Querier) error) {
		g.Go(func() error { return s.store.WithConn(gctx, fn) })
	}

	run(func(q database.Querier) (err error) {
		sum.TotalViews, err = s.events.CountViews(gctx, q, userID)
		return
	})
	run(func(q database.Querier) (err error) {
		sum.TotalClicks, err = s.events.SumLinkClicks(gctx, q, userID)
		return
	})
	run(func(q database.Querier) (err error) {
		sum.ViewsThisWeek, err = s.events.CountViewsSince(gctx, q, userID, weekStart)
		return
	})
	run(func(q database.Querier) (err error) {
		viewsPrev, err = s.events.CountViewsBetween(gctx, q, userID, prevStart, weekStart)
		return
	})
	run(func(q database.Querier) (err error) {
		sum.ClicksThisWeek, err = s.events.CountClicksSince(gctx, q, userID, weekStart)
		return
	})
	run(func(q database.Querier) (err error) {
		clicksPrev, err = s.events.CountClicksBetween(gctx, q, userID, prevStart, weekStart)
		return
	})
	run(func(q database.Querier) (err error) {
		sum.TopLinks, err = s.events.TopLinks(gctx, q, userID, topLinksMax)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum.CTR = ratioPercent(sum.TotalClicks, sum.TotalViews)
	sum.ViewsChangePercent = changePercent(sum.ViewsThisWeek, viewsPrev)
	sum.ClicksChangePercent = changePercent(sum.ClicksThisWeek, clicksPrev)
	return &sum, nil
}

// ratioPercent is num/den*100 rounded to one decimal, 0 when den is 0.
func ratioPercent(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return round1(float64(num) / float64(den) * 100)
}

// changePercent is the relative change from prev to cur, 0 when prev is 0.
func changePercent(cur, prev int64) float64 {
	if prev == 0 {
		return 0
	}
	return round1(float64(cur-prev) / float64(prev) * 100)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
