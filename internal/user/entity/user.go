package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/optional"
)

// Themes a profile page can be rendered with.
var Themes = []string{"classic", "dark", "nature", "sunset", "ocean", "purple"}

const DefaultTheme = "classic"

// User represents an account row in the `users` table. Email and username are
// stored lower-cased.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	DisplayName  *string   `db:"display_name" json:"display_name"`
	Bio          *string   `db:"bio" json:"bio"`
	AvatarURL    *string   `db:"avatar_url" json:"avatar_url"`
	Theme        string    `db:"theme" json:"theme"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PublicProfile is what anonymous visitors see.
type PublicProfile struct {
	Username    string  `db:"username" json:"username"`
	DisplayName *string `db:"display_name" json:"display_name"`
	Bio         *string `db:"bio" json:"bio"`
	AvatarURL   *string `db:"avatar_url" json:"avatar_url"`
	Theme       string  `db:"theme" json:"theme"`
}

// NewUser carries registration input after validation.
type NewUser struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

// ProfilePatch lists the profile fields a user may change. Only supplied
// fields are written; an empty string clears a nullable field.
type ProfilePatch struct {
	DisplayName optional.Value[string] `json:"display_name"`
	Bio         optional.Value[string] `json:"bio"`
	AvatarURL   optional.Value[string] `json:"avatar_url"`
	Theme       optional.Value[string] `json:"theme"`
}

func (p ProfilePatch) Empty() bool {
	return !p.DisplayName.Set && !p.Bio.Set && !p.AvatarURL.Set && !p.Theme.Set
}
