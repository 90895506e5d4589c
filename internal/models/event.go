package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	EventID         int64     `bun:"event_id,pk,autoincrement" json:"event_id"`
	Name            string    `bun:"name" json:"name"`
	Location        string    `bun:"location,nullzero" json:"location,omitempty"`
	StartTime       time.Time `bun:"start_time" json:"start_time"`
	EndTime         time.Time `bun:"end_time" json:"end_time"`
	Active          bool      `bun:"active" json:"active"`
	PopularityScore float64   `bun:"popularity_score" json:"popularity_score"`
	CreatedAt       time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Comment and Like rows are owned by the catalog collaborator; the core only
// counts them when recomputing popularity.
type Comment struct {
	bun.BaseModel `bun:"table:comments"`

	CommentID int64     `bun:"comment_id,pk,autoincrement"`
	EventID   int64     `bun:"event_id"`
	UserID    string    `bun:"user_id"`
	Content   string    `bun:"content"`
	CreatedAt time.Time `bun:"created_at"`
}

type Like struct {
	bun.BaseModel `bun:"table:likes"`

	LikeID  int64  `bun:"like_id,pk,autoincrement"`
	EventID int64  `bun:"event_id"`
	UserID  string `bun:"user_id"`
	Active  bool   `bun:"active"`
}
