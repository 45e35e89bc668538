package assist

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link"
	linkentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/optional"
)

const (
	maxBio   = 280
	maxTitle = 100
)

// Suggestion is the outcome of a rewrite. Value is the stored text after the
// call, whether or not it changed.
type Suggestion struct {
	Applied bool   `json:"applied"`
	Value   string `json:"value"`
}

// Service suggests bios and link titles and applies them.
type Service struct {
	users  *user.UserService
	links  *link.Service
	rw     Rewriter
	logger *zap.SugaredLogger
}

func NewService(users *user.UserService, links *link.Service, rw Rewriter, logger *zap.SugaredLogger) *Service {
	if rw == nil {
		rw = NopRewriter{}
	}
	return &Service{users: users, links: links, rw: rw, logger: logger}
}

func bioPrompt(username, bio string) string {
	if bio == "" {
		bio = "creator"
	}
	return fmt.Sprintf("Write a short, engaging, and professional bio (max 100 characters) for a social media profile. "+
		"The username is %q. Current bio context: %q. Do not use hashtags.", username, bio)
}

func titlePrompt(title, url string) string {
	return fmt.Sprintf("Rewrite this link title to be catchy, short (max 40 chars), and click-worthy. "+
		"The current title is %q and the URL is %q. Return ONLY the new title text, no quotes or explanations.", title, url)
}

var quotePairs = [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}}

// clean trims the rewrite, strips one pair of surrounding quotes and cuts it
// to max runes.
func clean(s string, max int) string {
	s = strings.TrimSpace(s)
	for _, p := range quotePairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			s = strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
			break
		}
	}
	if utf8.RuneCountInString(s) > max {
		s = strings.TrimSpace(string([]rune(s)[:max]))
	}
	return s
}

// rewrite runs the collaborator. ok is false when it failed or produced
// nothing usable.
func (s *Service) rewrite(ctx context.Context, kind, prompt string, max int) (string, bool) {
	out, err := s.rw.Rewrite(ctx, prompt)
	if err != nil {
		metrics.AssistRequests.WithLabelValues(kind, "failed").Inc()
		s.logger.Warnw("rewrite failed", "kind", kind, "err", err)
		return "", false
	}
	out = clean(out, max)
	if out == "" {
		metrics.AssistRequests.WithLabelValues(kind, "unchanged").Inc()
		return "", false
	}
	return out, true
}

// SuggestBio rewrites the caller's bio and stores the result.
func (s *Service) SuggestBio(ctx context.Context, userID string) (*Suggestion, error) {
	u, err := s.users.GetMyProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := ""
	if u.Bio != nil {
		current = *u.Bio
	}
	bio, ok := s.rewrite(ctx, "bio", bioPrompt(u.Username, current), maxBio)
	if !ok {
		return &Suggestion{Value: current}, nil
	}
	if _, err := s.users.UpdateProfile(ctx, userID, userentity.ProfilePatch{Bio: optional.Of(bio)}); err != nil {
		return nil, err
	}
	metrics.AssistRequests.WithLabelValues("bio", "applied").Inc()
	return &Suggestion{Applied: true, Value: bio}, nil
}

// OptimizeLinkTitle rewrites the title of one of the caller's links.
func (s *Service) OptimizeLinkTitle(ctx context.Context, userID, linkID string) (*Suggestion, error) {
	l, err := s.links.Get(ctx, linkID, userID)
	if err != nil {
		return nil, err
	}
	title, ok := s.rewrite(ctx, "title", titlePrompt(l.Title, l.URL), maxTitle)
	if !ok {
		return &Suggestion{Value: l.Title}, nil
	}
	if _, err := s.links.Update(ctx, linkID, userID, linkentity.Patch{Title: optional.Of(title)}); err != nil {
		return nil, err
	}
	metrics.AssistRequests.WithLabelValues("title", "applied").Inc()
	return &Suggestion{Applied: true, Value: title}, nil
}
