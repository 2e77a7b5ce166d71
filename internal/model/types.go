package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Database-level event types carried in channel message payloads.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Comment is a visitor comment on a blog post.
type Comment struct {
	ID        int64     `json:"commentId"`
	PostSlug  string    `json:"postSlug"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlogPost is a published or draft post.
type BlogPost struct {
	ID        int64     `json:"postId"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Status    string    `json:"status"` // draft, published, archived
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContactSubmission is one contact-form entry. Admin-only.
type ContactSubmission struct {
	ID        int64     `json:"submissionId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalyticsEvent is one decoded analytics beacon. Admin-only.
type AnalyticsEvent struct {
	ID         uuid.UUID       `json:"id"`
	EventType  string          `json:"eventType"` // page_view, click, ...
	Path       string          `json:"path"`
	VisitorID  string          `json:"visitorId"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}
