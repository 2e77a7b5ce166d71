// Package sink defines the UI notification interface the facade routes
// decoded payloads into, plus a logging implementation for headless use.
package sink

import (
	"log/slog"

	"github.com/alexvargas/portfolio-realtime/internal/model"
)

// Notification is a user-visible message.
type Notification struct {
	Message    string
	Level      string // info, warning, error
	Persistent bool   // true: stays until manually addressed
}

// Sink receives decoded realtime payloads. Implementations must not block;
// they are called from dispatch goroutines.
type Sink interface {
	AddNewComment(c model.Comment)
	UpdateComment(c model.Comment)
	AddNewBlogPost(p model.BlogPost)
	UpdateBlogPost(p model.BlogPost)
	RemoveBlogPost(id int64)
	AddContactSubmission(s model.ContactSubmission)
	UpdateActiveUsers(count int)
	ShowUserJoined(key string)
	ShowUserLeft(key string)
	UpdateAnalyticsDashboard(e model.AnalyticsEvent)
	ShowNotification(n Notification)
}

// LogSink writes every sink call to the structured log. Used by the
// binaries and as a safe default.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "sink")}
}

func (s *LogSink) AddNewComment(c model.Comment) {
	s.logger.Info("new comment", "comment_id", c.ID, "post", c.PostSlug, "author", c.Author)
}

func (s *LogSink) UpdateComment(c model.Comment) {
	s.logger.Info("comment updated", "comment_id", c.ID, "approved", c.Approved)
}

func (s *LogSink) AddNewBlogPost(p model.BlogPost) {
	s.logger.Info("new blog post", "post_id", p.ID, "slug", p.Slug)
}

func (s *LogSink) UpdateBlogPost(p model.BlogPost) {
	s.logger.Info("blog post updated", "post_id", p.ID, "slug", p.Slug, "status", p.Status)
}

func (s *LogSink) RemoveBlogPost(id int64) {
	s.logger.Info("blog post removed", "post_id", id)
}

func (s *LogSink) AddContactSubmission(sub model.ContactSubmission) {
	s.logger.Info("contact submission", "submission_id", sub.ID, "email", sub.Email)
}

func (s *LogSink) UpdateActiveUsers(count int) {
	s.logger.Info("active users", "count", count)
}

func (s *LogSink) ShowUserJoined(key string) {
	s.logger.Info("user joined", "key", key)
}

func (s *LogSink) ShowUserLeft(key string) {
	s.logger.Info("user left", "key", key)
}

func (s *LogSink) UpdateAnalyticsDashboard(e model.AnalyticsEvent) {
	s.logger.Info("analytics event", "event_type", e.EventType, "path", e.Path)
}

func (s *LogSink) ShowNotification(n Notification) {
	s.logger.Info("notification", "level", n.Level, "message", n.Message, "persistent", n.Persistent)
}
