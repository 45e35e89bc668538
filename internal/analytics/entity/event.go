package entity

import "time"

// ClickEvent is appended for every counted public click.
type ClickEvent struct {
	ID        string    `db:"id"`
	LinkID    string    `db:"link_id"`
	UserID    string    `db:"user_id"`
	ClickedAt time.Time `db:"clicked_at"`
	IPAddress *string   `db:"ip_address"`
	UserAgent *string   `db:"user_agent"`
	Referer   *string   `db:"referer"`
}

// ProfileView is appended for every public profile fetch.
type ProfileView struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ViewedAt  time.Time `db:"viewed_at"`
	IPAddress *string   `db:"ip_address"`
	UserAgent *string   `db:"user_agent"`
	Referer   *string   `db:"referer"`
}

type TopLink struct {
	ID     string `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Clicks int64  `db:"clicks" json:"clicks"`
}

// Summary is the owner's analytics dashboard.
type Summary struct {
	TotalViews          int64     `json:"totalViews"`
	TotalClicks         int64     `json:"totalClicks"`
	CTR                 float64   `json:"ctr"`
	ViewsThisWeek       int64     `json:"viewsThisWeek"`
	ClicksThisWeek      int64     `json:"clicksThisWeek"`
	ViewsChangePercent  float64   `json:"viewsChangePercent"`
	ClicksChangePercent float64   `json:"clicksChangePercent"`
	TopLinks            []TopLink `json:"topLinks"`
}
