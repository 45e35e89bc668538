package user

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/utilities"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/validation"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports hashes produced with a lower cost than configured.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	return err == nil && c < b.cost()
}

var (
	ErrBadCredentials = apperr.New(apperr.Unauthorized, "Invalid email or password")
	ErrAlreadyTaken   = apperr.New(apperr.Conflict, "Email or username is already taken")
	ErrUserNotFound   = apperr.New(apperr.NotFound, "User not found")
	ErrNoFields       = apperr.New(apperr.BadRequest, "No fields to update")
)

const avatarURLFormat = "https://api.dicebear.com/7.x/avataaars/svg?seed=%s"

// UserService is the credential store and profile owner.
type UserService struct {
	store  *database.Store
	repo   *userrepo.UserRepo
	hasher PasswordHasher
	logger *zap.SugaredLogger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(store *database.Store, hasher PasswordHasher, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{
		store:  store,
		repo:   userrepo.NewUserRepo(),
		hasher: hasher,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Repo() *userrepo.UserRepo { return s.repo }

// EnsureSchema creates the users table.
func (s *UserService) EnsureSchema(ctx context.Context, q database.Querier) error {
	return s.repo.EnsureTable(ctx, q)
}

// Create registers a user on q so the caller can compose it into a larger
// transaction. Email and username are normalized to lower case.
func (s *UserService) Create(ctx context.Context, q database.Querier, in entity.NewUser) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))

	taken, err := s.repo.Taken(ctx, q, email, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrAlreadyTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	avatar := fmt.Sprintf(avatarURLFormat, url.QueryEscape(username))
	u := &entity.User{
		ID:           utilities.NewSnowflakeID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		AvatarURL:    &avatar,
		Theme:        entity.DefaultTheme,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if dn := strings.TrimSpace(in.DisplayName); dn != "" {
		u.DisplayName = &dn
	}
	if err := s.repo.Create(ctx, q, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyTaken
		}
		return nil, err
	}
	return u, nil
}

// AuthenticatePassword checks credentials of an active user. Unknown email,
// inactive account and wrong password all yield ErrBadCredentials.
func (s *UserService) AuthenticatePassword(ctx context.Context, email, password string) (*entity.User, error) {
	var u *entity.User
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		u, err = s.repo.GetActiveByEmail(ctx, q, strings.TrimSpace(email))
		return err
	})
	if err != nil {
		if database.IsNoRows(err) {
			// keep the timing of unknown emails close to wrong passwords
			s.hasher.Verify(s.dummy(), password)
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if h, err := s.hasher.Hash(password); err == nil {
			err = s.store.WithConn(ctx, func(q database.Querier) error {
				return s.repo.UpdatePassword(ctx, q, u.ID, h, s.now())
			})
			if err != nil {
				s.logger.Warnw("password rehash failed", "user_id", u.ID, "err", err)
			}
		}
	}
	return u, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("orangelink-dummy-password")
	})
	return s.dummyHash
}

// GetActiveByID returns the user if it exists and is active.
func (s *UserService) GetActiveByID(ctx context.Context, q database.Querier, id string) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, q, id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// GetMyProfile returns the caller's own account.
func (s *UserService) GetMyProfile(ctx context.Context, userID string) (*entity.User, error) {
	var u *entity.User
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		u, err = s.repo.GetByID(ctx, q, userID)
		return err
	})
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetPublicProfile returns the public projection of an active user.
func (s *UserService) GetPublicProfile(ctx context.Context, username string) (*entity.PublicProfile, error) {
	var p *entity.PublicProfile
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		p, err = s.repo.GetPublicByUsername(ctx, q, username)
		return err
	})
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.New(apperr.NotFound, fmt.Sprintf("Profile @%s not found", username))
		}
		return nil, err
	}
	return p, nil
}

// ValidateProfilePatch checks supplied fields and reports every violation.
func ValidateProfilePatch(p entity.ProfilePatch) error {
	var c validation.Collector
	if v, ok := p.DisplayName.Get(); ok && v != "" {
		c.Var("display_name", v, "max=50")
	}
	if v, ok := p.Bio.Get(); ok && v != "" {
		c.Var("bio", v, "max=280")
	}
	if v, ok := p.AvatarURL.Get(); ok && v != "" {
		c.Var("avatar_url", v, "http_url")
	}
	if v, ok := p.Theme.Get(); ok {
		c.Var("theme", v, "oneof="+strings.Join(entity.Themes, " "))
	}
	return c.Err()
}

// UpdateProfile writes the supplied fields and returns the updated account.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, p entity.ProfilePatch) (*entity.User, error) {
	if p.Empty() {
		return nil, ErrNoFields
	}
	if err := ValidateProfilePatch(p); err != nil {
		return nil, err
	}
	var u *entity.User
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		n, err := s.repo.UpdateProfile(ctx, q, userID, p, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrUserNotFound
		}
		u, err = s.repo.GetByID(ctx, q, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CheckUsernameAvailable reports whether nobody holds username, compared
// case-insensitively.
func (s *UserService) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		exists, err = s.repo.UsernameExists(ctx, q, strings.TrimSpace(username))
		return err
	})
	return !exists, err
}

// Reactivate restores a deactivated account. Sessions revoked at
// deactivation stay revoked.
func (s *UserService) Reactivate(ctx context.Context, email string) error {
	return s.store.WithConn(ctx, func(q database.Querier) error {
		id, err := s.repo.GetIDByEmail(ctx, q, email)
		if err != nil {
			if database.IsNoRows(err) {
				return ErrUserNotFound
			}
			return err
		}
		_, err = s.repo.Reactivate(ctx, q, id, s.now())
		return err
	})
}
