package link

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/entity"
	linkrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/repo"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/utilities"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/validation"
)

var (
	ErrLinkNotFound = apperr.New(apperr.NotFound, "Link not found")
	ErrNoFields     = apperr.New(apperr.BadRequest, "No fields to update")
	ErrNotOwned     = apperr.New(apperr.Forbidden, "One or more links do not belong to you")
)

// ClickAppender stores a click event on q, inside the caller's transaction.
type ClickAppender interface {
	AppendClick(ctx context.Context, q database.Querier, linkID, ownerID string, meta request.Meta) error
}

// Service manages each user's ordered link collection.
type Service struct {
	store  *database.Store
	repo   *linkrepo.LinkRepo
	clicks ClickAppender
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store *database.Store, clicks ClickAppender, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		repo:   linkrepo.NewLinkRepo(),
		clicks: clicks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) EnsureSchema(ctx context.Context, q database.Querier) error {
	return s.repo.EnsureTable(ctx, q)
}

// List returns the owner's links ordered by sort_order, newest first on ties.
func (s *Service) List(ctx context.Context, userID string) ([]entity.Link, error) {
	var links []entity.Link
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		links, err = s.repo.ListByUser(ctx, q, userID)
		return err
	})
	return links, err
}

// ListPublic returns the active links of an active user. Unknown usernames
// yield an empty list.
func (s *Service) ListPublic(ctx context.Context, username string) ([]entity.Link, error) {
	var links []entity.Link
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		links, err = s.repo.ListPublicByUsername(ctx, q, username)
		return err
	})
	return links, err
}

// Create appends a link after the owner's current last one.
func (s *Service) Create(ctx context.Context, userID string, in entity.NewLink) (*entity.Link, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	l := &entity.Link{
		ID:        utilities.NewKSUID(),
		UserID:    userID,
		Title:     in.Title,
		URL:       in.URL,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.WithTx(ctx, func(tx database.Querier) error {
		if s.store.RowLocks() {
			if err := s.repo.LockOwner(ctx, tx, userID); err != nil {
				return err
			}
		}
		next, err := s.repo.NextSortOrder(ctx, tx, userID)
		if err != nil {
			return err
		}
		l.SortOrder = next
		return s.repo.Insert(ctx, tx, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func validatePatch(p *entity.Patch) error {
	var c validation.Collector
	if p.Title.Set {
		p.Title.Value = strings.TrimSpace(p.Title.Value)
		c.Var("title", p.Title.Value, "required,max=100")
	}
	if p.URL.Set {
		p.URL.Value = strings.TrimSpace(p.URL.Value)
		c.Var("url", p.URL.Value, "required,http_url")
	}
	if p.IsActive.Null {
		c.Add("is_active", "must not be null")
	}
	switch {
	case p.SortOrder.Null:
		c.Add("sort_order", "must not be null")
	case p.SortOrder.Set:
		c.Var("sort_order", p.SortOrder.Value, "gte=0")
	}
	return c.Err()
}

// Update changes only the supplied fields of an owned link. Links of other
// users are reported as not found.
func (s *Service) Update(ctx context.Context, linkID, userID string, p entity.Patch) (*entity.Link, error) {
	if err := validatePatch(&p); err != nil {
		return nil, err
	}
	var l *entity.Link
	err := s.store.WithTx(ctx, func(tx database.Querier) error {
		if _, err := s.repo.GetOwned(ctx, tx, linkID, userID); err != nil {
			if database.IsNoRows(err) {
				return ErrLinkNotFound
			}
			return err
		}
		if p.Empty() {
			return ErrNoFields
		}
		if _, err := s.repo.Update(ctx, tx, linkID, userID, p, s.now()); err != nil {
			return err
		}
		var err error
		l, err = s.repo.GetOwned(ctx, tx, linkID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Delete removes an owned link.
func (s *Service) Delete(ctx context.Context, linkID, userID string) error {
	return s.store.WithConn(ctx, func(q database.Querier) error {
		n, err := s.repo.Delete(ctx, q, linkID, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLinkNotFound
		}
		return nil
	})
}

// Reorder applies every sort_order in items, or none of them when any id is
// not owned by userID. Duplicate ids apply in payload order.
func (s *Service) Reorder(ctx context.Context, userID string, items []entity.OrderItem) error {
	if err := validation.Struct(entity.ReorderRequest{Links: items}); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; !dup {
			seen[it.ID] = struct{}{}
			ids = append(ids, it.ID)
		}
	}

	return s.store.WithTx(ctx, func(tx database.Querier) error {
		owned, err := s.repo.CountOwned(ctx, tx, userID, ids)
		if err != nil {
			return err
		}
		if owned != len(ids) {
			s.logger.Debugw("reorder rejected", "user_id", userID, "requested", len(ids), "owned", owned)
			return ErrNotOwned
		}
		now := s.now()
		for _, it := range items {
			if err := s.repo.SetSortOrder(ctx, tx, it.ID, userID, it.SortOrder, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordClick counts a public click: the counter increment and the click
// event commit together or not at all. Unknown or inactive links are ignored
// without error.
func (s *Service) RecordClick(ctx context.Context, linkID string, meta request.Meta) error {
	recorded := false
	err := s.store.WithTx(ctx, func(tx database.Querier) error {
		ownerID, err := s.repo.GetClickTarget(ctx, tx, linkID)
		if err != nil {
			if database.IsNoRows(err) {
				return nil
			}
			return err
		}
		if _, err := s.repo.IncrementClicks(ctx, tx, linkID); err != nil {
			return err
		}
		if err := s.clicks.AppendClick(ctx, tx, linkID, ownerID, meta); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	switch {
	case err != nil:
		metrics.Clicks.WithLabelValues("failed").Inc()
		s.logger.Warnw("click not recorded", "link_id", linkID, "err", err)
		return err
	case recorded:
		metrics.Clicks.WithLabelValues("recorded").Inc()
	default:
		metrics.Clicks.WithLabelValues("ignored").Inc()
	}
	return nil
}

// Get returns an owned link.
func (s *Service) Get(ctx context.Context, linkID, userID string) (*entity.Link, error) {
	var l *entity.Link
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		l, err = s.repo.GetOwned(ctx, q, linkID, userID)
		if database.IsNoRows(err) {
			return ErrLinkNotFound
		}
		return err
	})
	return l, err
}
