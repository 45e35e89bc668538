package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics/entity"
	eventrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/utilities"
)

// Recorder ingests click and view events.
type Recorder struct {
	store  *database.Store
	events *eventrepo.EventRepo
	users  *userrepo.UserRepo
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRecorder(store *database.Store, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{
		store:  store,
		events: eventrepo.NewEventRepo(),
		users:  userrepo.NewUserRepo(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) EnsureSchema(ctx context.Context, q database.Querier) error {
	return r.events.EnsureTable(ctx, q)
}

// AppendClick writes a click event on q. Callers run it in the same
// transaction as the link counter increment.
func (r *Recorder) AppendClick(ctx context.Context, q database.Querier, linkID, ownerID string, meta request.Meta) error {
	return r.events.InsertClick(ctx, q, &entity.ClickEvent{
		ID:        utilities.NewKSUID(),
		LinkID:    linkID,
		UserID:    ownerID,
		ClickedAt: r.now(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Referer:   meta.Referer,
	})
}

// RecordProfileView stores a view of username's page. It never fails the
// caller: unknown users are ignored and storage errors are logged and counted.
func (r *Recorder) RecordProfileView(ctx context.Context, username string, meta request.Meta) {
	err := r.store.WithConn(ctx, func(q database.Querier) error {
		userID, err := r.users.GetActiveIDByUsername(ctx, q, username)
		if err != nil {
			return err
		}
		return r.events.InsertView(ctx, q, &entity.ProfileView{
			ID:        utilities.NewKSUID(),
			UserID:    userID,
			ViewedAt:  r.now(),
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Referer:   meta.Referer,
		})
	})
	switch {
	case err == nil:
		metrics.ProfileViews.WithLabelValues("recorded").Inc()
	case database.IsNoRows(err):
		metrics.ProfileViews.WithLabelValues("ignored").Inc()
	default:
		metrics.ProfileViews.WithLabelValues("failed").Inc()
		r.logger.Warnw("profile view not recorded", "username", username, "err", err)
	}
}
