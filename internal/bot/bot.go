// Package bot implements the Herald bot: the dispatcher that watches
// chat messages for ticket references, posts issue summaries, and
// handles the inline identity/assignment commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	matrixchat "github.com/herald-labs/herald/internal/chat/matrix"
	slackchat "github.com/herald-labs/herald/internal/chat/slack"
	"github.com/herald-labs/herald/internal/tracker/jira"
	"github.com/herald-labs/herald/pkg/chat"
	"github.com/herald-labs/herald/pkg/mention"
	"github.com/herald-labs/herald/pkg/store"
	"github.com/herald-labs/herald/pkg/throttle"
	"github.com/herald-labs/herald/pkg/ticketref"
	"github.com/herald-labs/herald/pkg/tracker"
)

// Bot is the main Herald process.
type Bot struct {
	config  *Config
	chat    chat.Transport
	tracker tracker.Client
	store   store.Store

	matcher  *ticketref.Matcher
	throttle *throttle.Gate
	mentions *mention.Tracker
	pipeline []commandHandler

	ignored map[string]struct{}
	urlRoot string

	// now is the clock; replaced in tests.
	now func() time.Time

	startedAt time.Time
	healthy   bool
}

// New creates a bot instance, wiring the configured store, chat
// transport, and tracker client.
func New(cfg *Config) (*Bot, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var transport chat.Transport
	switch cfg.Chat.Provider {
	case "slack":
		transport = slackchat.New(slackchat.Config{
			BotToken: cfg.Chat.Slack.BotToken,
			AppToken: cfg.Chat.Slack.AppToken,
		})
	case "matrix":
		transport = matrixchat.New(matrixchat.Config{
			Homeserver: cfg.Chat.Matrix.Homeserver,
			UserID:     cfg.Chat.Matrix.UserID,
			Password:   cfg.Chat.Matrix.Password,
			ServerName: cfg.Chat.Matrix.ServerName,
			DataDir:    cfg.Chat.Matrix.DataDir,
		})
	default:
		st.Close()
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Chat.Provider)
	}

	tc := jira.NewClient(jira.Config{
		BaseURL:  cfg.Jira.BaseURL,
		Username: cfg.Jira.Username,
		Password: cfg.Jira.Password,
	})

	b := newWith(cfg, transport, tc, st)
	slog.Info("bot configured",
		"chat", cfg.Chat.Provider,
		"store", cfg.Store.Backend,
		"cool_down", b.throttle.CoolDown(),
	)
	return b, nil
}

// newWith assembles a bot over explicit collaborators. Tests use it
// with fakes; New wires the concrete adapters.
func newWith(cfg *Config, transport chat.Transport, tc tracker.Client, st store.Store) *Bot {
	b := &Bot{
		config:    cfg,
		chat:      transport,
		tracker:   tc,
		store:     st,
		matcher:   ticketref.NewMatcher(),
		throttle:  throttle.NewGate(st, cfg.CoolDownDuration()),
		mentions:  mention.NewTracker(st),
		ignored:   make(map[string]struct{}, len(cfg.IgnoreChannels)),
		urlRoot:   cfg.Jira.URLRoot,
		now:       time.Now,
		startedAt: time.Now(),
	}
	for _, ch := range cfg.IgnoreChannels {
		b.ignored[ch] = struct{}{}
	}
	// Fixed priority order; the ticket-info handler is terminal.
	b.pipeline = []commandHandler{
		{name: "bind-identity", handle: b.handleBindIdentity},
		{name: "assign-ticket", handle: b.handleAssignTicket},
		{name: "ticket-info", handle: b.handleTicketInfo},
	}
	return b
}

func openStore(cfg *Config) (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite store requires sqlite_path")
		}
		return store.OpenSQLite(cfg.Store.SQLitePath)
	case "redis":
		if cfg.Store.RedisURL == "" {
			return nil, fmt.Errorf("redis store requires redis_url")
		}
		return store.NewRedis(ctx, cfg.Store.RedisURL)
	case "postgres":
		if cfg.Store.PostgresURL == "" {
			return nil, fmt.Errorf("postgres store requires postgres_url")
		}
		return store.NewPostgres(ctx, cfg.Store.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Run starts the bot. Blocks until ctx is cancelled or the transport
// fails fatally.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("herald running",
		"name", b.config.Name,
		"chat", b.chat.Name(),
		"ignored_channels", len(b.ignored),
	)

	// Initial project-key load. Failure degrades to the fallback
	// pattern; the refresh worker keeps retrying.
	if err := b.refreshProjectKeys(ctx); err != nil {
		slog.Warn("initial project list unavailable, using fallback matcher", "error", err)
	}

	if interval := b.config.ProjectRefreshInterval(); interval > 0 {
		go b.runProjectRefresh(ctx, interval)
	}

	if b.config.HealthAddr != "" {
		go b.serveHealth(ctx)
	}

	// Start chat listener in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting chat transport", "transport", b.chat.Name())
		if err := b.chat.Start(ctx, b.HandleInboundMessage); err != nil {
			errCh <- err
		}
	}()

	// Mark healthy once the transport has had a moment to connect
	go func() {
		time.Sleep(2 * time.Second)
		b.healthy = true
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("chat transport fatal error: %w", err)
		}
	}

	b.healthy = false
	b.chat.Stop()
	if err := b.store.Close(); err != nil {
		slog.Warn("store close failed", "error", err)
	}

	slog.Info("herald shutting down")
	return nil
}

// serveHealth runs the health endpoint.
func (b *Bot) serveHealth(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if b.healthy {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok","uptime":"%s"}`, time.Since(b.startedAt).Round(time.Second))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"starting"}`)
		}
	})

	srv := &http.Server{Addr: b.config.HealthAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	slog.Info("health endpoint listening", "addr", b.config.HealthAddr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Warn("health server error", "error", err)
	}
}
