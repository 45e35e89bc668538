package entity

import (
	"time"

	userentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
)

// RefreshToken is one node of a refresh-token lineage. Only the hash of the
// raw token is stored.
type RefreshToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
}

// TokenPair is returned to clients; ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type AuthResult struct {
	User   *userentity.User `json:"user"`
	Tokens *TokenPair       `json:"tokens"`
}
