package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexvargas/portfolio-realtime/internal/auth"
	"github.com/alexvargas/portfolio-realtime/internal/connection"
	"github.com/alexvargas/portfolio-realtime/internal/events"
	"github.com/alexvargas/portfolio-realtime/internal/model"
	"github.com/alexvargas/portfolio-realtime/internal/presence"
	"github.com/alexvargas/portfolio-realtime/internal/sink"
	"github.com/alexvargas/portfolio-realtime/internal/subscription"
)

// Domain channel names.
const (
	ChannelComments     = "comments-channel"
	ChannelBlogPosts    = "blog-posts-channel"
	ChannelContactForms = "contact-forms-channel"
	ChannelAnalytics    = "analytics-channel"
	ChannelPresence     = "presence-channel"
)

// Config configures the facade.
type Config struct {
	// Endpoint is the realtime service WebSocket URL.
	Endpoint string

	// Protocols are the Sec-WebSocket-Protocol values offered on dial.
	Protocols []string

	// Headers are extra handshake headers (authorization and the like).
	Headers map[string]string

	// Manager tunes the underlying connection manager.
	Manager connection.ManagerConfig

	// SetupMaxAttempts bounds the facade's own setup retry. Default 3.
	SetupMaxAttempts int

	// PresenceAdminOnly restricts the presence channel to admin sessions.
	PresenceAdminOnly bool

	// Location is reported in this client's presence record.
	Location string
}

// Facade declares the fixed set of domain channels, gates the admin-only
// ones, and routes decoded payloads to the UI sink and the event bus.
type Facade struct {
	cfg    Config
	logger *slog.Logger

	mgr     *connection.Manager
	reg     *subscription.Registry
	bus     *events.Bus
	uiSink  sink.Sink
	users   auth.CurrentUserProvider
	tracker *presence.Tracker

	mu     sync.Mutex
	connID string
}

// New builds the facade and the connection/subscription layers beneath it.
// Call Start to connect.
func New(cfg Config, bus *events.Bus, uiSink sink.Sink, users auth.CurrentUserProvider, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SetupMaxAttempts == 0 {
		cfg.SetupMaxAttempts = 3
	}
	if cfg.Location == "" {
		cfg.Location = "/"
	}
	// The setup retry shares the manager's backoff settings; the manager
	// defaults them internally, so default them here too or a zero config
	// would retry with no delay.
	def := connection.DefaultManagerConfig()
	if cfg.Manager.ReconnectBaseDelay == 0 {
		cfg.Manager.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.Manager.ReconnectMaxDelay == 0 {
		cfg.Manager.ReconnectMaxDelay = def.ReconnectMaxDelay
	}

	f := &Facade{
		cfg:    cfg,
		logger: logger.With("component", "realtime"),
		bus:    bus,
		uiSink: uiSink,
		users:  users,
	}

	hooks := connection.Hooks{
		OnConnected: func(connID string) {
			f.reg.ResubscribeAll(connID)
			f.bus.Publish(events.TopicConnectionOpen, connID)
		},
		OnClosing: func(connID string) {
			f.reg.RemoveConnection(connID)
		},
		OnFrame: func(connID string, frame connection.InboundFrame, raw []byte) {
			f.reg.HandleFrame(connID, frame, raw)
			if frame.Type == connection.FrameChannelMessage {
				f.bus.Publish(events.TopicChannelMessage, frame)
			}
		},
		OnMaxAttempts: func(connID string) {
			f.uiSink.ShowNotification(sink.Notification{
				Message:    "Realtime connection failed. Live updates are unavailable.",
				Level:      "error",
				Persistent: true,
			})
			f.bus.Publish(events.TopicConnectionFailed, connID)
		},
		OnStatus: func(connID string, status connection.Status) {
			if status == connection.StatusClosed {
				f.bus.Publish(events.TopicConnectionClosed, connID)
			}
		},
	}

	f.mgr = connection.NewManager(cfg.Manager, hooks, logger)
	f.reg = subscription.NewRegistry(f.mgr, logger)
	f.reg.SetRawHandler(func(connID string, raw []byte) {
		// Undecodable traffic is surfaced, not dropped.
		f.bus.Publish(events.TopicChannelMessage, json.RawMessage(raw))
	})

	return f
}

// Start connects to the realtime service and subscribes the domain
// channels. The admin capability check runs once, here, not per frame. If
// setup keeps failing, a persistent notification is raised and automatic
// retry stops; Reconnect remains available.
func (f *Facade) Start(ctx context.Context) error {
	if err := f.mgr.Start(ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}

	user, err := f.users.CurrentUser(ctx)
	if err != nil {
		f.logger.Warn("current user lookup failed, assuming anonymous", "error", err)
		user = nil
	}
	admin := auth.IsAdmin(user)

	var lastErr error
	for attempt := 1; attempt <= f.cfg.SetupMaxAttempts; attempt++ {
		lastErr = f.setup(user, admin)
		if lastErr == nil {
			f.logger.Info("realtime subscriptions active", "admin", admin)
			return nil
		}

		delay := connection.Delay(attempt,
			f.cfg.Manager.ReconnectBaseDelay,
			f.cfg.Manager.ReconnectMaxDelay,
		)
		f.logger.Warn("realtime setup failed",
			"attempt", attempt,
			"retry_in", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	f.uiSink.ShowNotification(sink.Notification{
		Message:    "Realtime connection failed. Live updates are unavailable.",
		Level:      "error",
		Persistent: true,
	})
	f.bus.Publish(events.TopicConnectionFailed, "")
	return fmt.Errorf("realtime setup: %w", lastErr)
}

// Stop tears down the presence tracker and every connection.
func (f *Facade) Stop(ctx context.Context) error {
	if f.tracker != nil {
		f.tracker.Stop()
	}
	return f.mgr.Stop(ctx)
}

// Reconnect manually re-dials the facade's connection, resetting backoff.
func (f *Facade) Reconnect() error {
	f.mu.Lock()
	connID := f.connID
	f.mu.Unlock()
	if connID == "" {
		return connection.ErrUnknownConnection
	}
	return f.mgr.Reconnect(connID)
}

// Suspend pauses liveness monitoring while the application is backgrounded.
func (f *Facade) Suspend() { f.mgr.Suspend() }

// Resume re-enables liveness monitoring and re-validates every connection.
func (f *Facade) Resume() { f.mgr.Resume() }

// SetOnline records network reachability changes.
func (f *Facade) SetOnline(online bool) { f.mgr.SetOnline(online) }

// Registry exposes the subscription registry for callers that attach their
// own listeners.
func (f *Facade) Registry() *subscription.Registry { return f.reg }

// Presence returns the presence tracker, or nil when the presence channel
// was gated off.
func (f *Facade) Presence() *presence.Tracker { return f.tracker }

// setup opens the connection and binds every domain channel. Admin-gated
// channels are silently skipped for non-admin sessions.
func (f *Facade) setup(user *auth.User, admin bool) error {
	connID, err := f.mgr.Create(f.cfg.Endpoint, f.cfg.Protocols, connection.CreateOptions{
		Headers: f.cfg.Headers,
	})
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}

	f.mu.Lock()
	f.connID = connID
	f.mu.Unlock()

	bindings := []struct {
		name  string
		admin bool
		bind  func(connID string)
	}{
		{ChannelComments, false, f.bindComments},
		{ChannelBlogPosts, false, f.bindBlogPosts},
		{ChannelContactForms, true, f.bindContactForms},
		{ChannelAnalytics, true, f.bindAnalytics},
	}

	for _, b := range bindings {
		if b.admin && !admin {
			f.logger.Debug("skipping admin channel", "channel", b.name)
			continue
		}
		b.bind(connID)
	}

	if !f.cfg.PresenceAdminOnly || admin {
		f.bindPresence(connID, user)
	} else {
		f.logger.Debug("skipping admin channel", "channel", ChannelPresence)
	}

	return nil
}

func (f *Facade) bindComments(connID string) {
	f.reg.Subscribe(connID, ChannelComments, nil)
	f.reg.AddListener(ChannelComments, subscription.Exact(model.EventInsert), func(ev subscription.Event) {
		var c model.Comment
		if !f.decode(ev, &c) {
			return
		}
		f.uiSink.AddNewComment(c)
		f.bus.Publish(events.TopicNewComment, c)
	})
	f.reg.AddListener(ChannelComments, subscription.Exact(model.EventUpdate), func(ev subscription.Event) {
		var c model.Comment
		if !f.decode(ev, &c) {
			return
		}
		f.uiSink.UpdateComment(c)
		f.bus.Publish(events.TopicCommentUpdated, c)
	})
}

func (f *Facade) bindBlogPosts(connID string) {
	f.reg.Subscribe(connID, ChannelBlogPosts, nil)
	f.reg.AddListener(ChannelBlogPosts, subscription.Any(), func(ev subscription.Event) {
		var p model.BlogPost
		if !f.decode(ev, &p) {
			return
		}
		switch ev.Type {
		case model.EventInsert:
			f.uiSink.AddNewBlogPost(p)
		case model.EventUpdate:
			f.uiSink.UpdateBlogPost(p)
		case model.EventDelete:
			f.uiSink.RemoveBlogPost(p.ID)
		default:
			return
		}
		f.bus.Publish(events.TopicBlogPostChanged, p)
	})
}

func (f *Facade) bindContactForms(connID string) {
	f.reg.Subscribe(connID, ChannelContactForms, nil)
	f.reg.AddListener(ChannelContactForms, subscription.Exact(model.EventInsert), func(ev subscription.Event) {
		var s model.ContactSubmission
		if !f.decode(ev, &s) {
			return
		}
		f.uiSink.AddContactSubmission(s)
		f.bus.Publish(events.TopicContactSubmission, s)
	})
}

func (f *Facade) bindAnalytics(connID string) {
	f.reg.Subscribe(connID, ChannelAnalytics, nil)
	f.reg.AddListener(ChannelAnalytics, subscription.Any(), func(ev subscription.Event) {
		var e model.AnalyticsEvent
		if !f.decode(ev, &e) {
			return
		}
		f.uiSink.UpdateAnalyticsDashboard(e)
		f.bus.Publish(events.TopicAnalyticsEvent, e)
	})
}

func (f *Facade) bindPresence(connID string, user *auth.User) {
	self := presence.Record{
		Key:      "anonymous-" + uuid.NewString(),
		Location: f.cfg.Location,
	}
	if user != nil {
		self.Key = user.ID
		self.Meta = map[string]any{"role": user.Role}
	}

	f.tracker = presence.NewTracker(f.reg, f.mgr, ChannelPresence, self, f.logger)
	f.tracker.OnJoin(func(key string, _ []presence.Record) {
		f.uiSink.ShowUserJoined(key)
		f.uiSink.UpdateActiveUsers(f.tracker.ActiveCount())
		f.bus.Publish(events.TopicPresenceJoin, key)
	})
	f.tracker.OnLeave(func(key string) {
		f.uiSink.ShowUserLeft(key)
		f.uiSink.UpdateActiveUsers(f.tracker.ActiveCount())
		f.bus.Publish(events.TopicPresenceLeave, key)
	})
	f.tracker.Start(connID, map[string]any{"presence": true})

	// The tracker's own listener runs first (registration order), so the
	// count read here reflects the sync that just landed.
	f.reg.AddListener(ChannelPresence, subscription.Exact("sync"), func(subscription.Event) {
		f.uiSink.UpdateActiveUsers(f.tracker.ActiveCount())
	})
}

// decode unmarshals an event payload, logging and skipping frames that do
// not match the expected shape.
func (f *Facade) decode(ev subscription.Event, v any) bool {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		f.logger.Warn("undecodable payload",
			"channel", ev.Channel,
			"event", ev.Type,
			"error", err,
		)
		return false
	}
	return true
}
