package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/optional"
)

// Link is one entry of a user's ordered collection.
type Link struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Title      string    `db:"title" json:"title"`
	URL        string    `db:"url" json:"url"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	SortOrder  int       `db:"sort_order" json:"sort_order"`
	ClickCount int64     `db:"click_count" json:"click_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PublicLink is the projection rendered on a public page.
type PublicLink struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	SortOrder int    `json:"sort_order"`
}

func (l Link) Public() PublicLink {
	return PublicLink{ID: l.ID, Title: l.Title, URL: l.URL, SortOrder: l.SortOrder}
}

type NewLink struct {
	Title string `json:"title" validate:"required,max=100"`
	URL   string `json:"url" validate:"required,http_url"`
}

// Patch carries the fields of a partial update; unset fields are left alone.
type Patch struct {
	Title     optional.Value[string] `json:"title"`
	URL       optional.Value[string] `json:"url"`
	IsActive  optional.Value[bool]   `json:"is_active"`
	SortOrder optional.Value[int]    `json:"sort_order"`
}

func (p Patch) Empty() bool {
	return !p.Title.Set && !p.URL.Set && !p.IsActive.Set && !p.SortOrder.Set
}

type OrderItem struct {
	ID        string `json:"id" validate:"required"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

type ReorderRequest struct {
	Links []OrderItem `json:"links" validate:"required,min=1,dive"`
}
