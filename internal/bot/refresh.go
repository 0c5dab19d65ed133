package bot

import (
	"context"
	"log/slog"
	"time"
)

// refreshProjectKeys fetches the tracker's project list and rebuilds
// the ticket matcher from it. An empty or unavailable list leaves the
// matcher on its previous key set (or the fallback pattern).
func (b *Bot) refreshProjectKeys(ctx context.Context) error {
	projects, err := b.tracker.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		slog.Warn("tracker returned no projects, keeping current matcher")
		return nil
	}

	keys := make([]string, 0, len(projects))
	for _, p := range projects {
		if p.Key != "" {
			keys = append(keys, p.Key)
		}
	}
	b.matcher.SetProjectKeys(keys)
	slog.Info("project keys refreshed", "count", len(keys))
	return nil
}

// runProjectRefresh periodically re-fetches the project-key set so new
// projects start producing notifications without a restart. Blocks
// until ctx is cancelled.
func (b *Bot) runProjectRefresh(ctx context.Context, interval time.Duration) {
	slog.Info("project refresh worker started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("project refresh worker stopping")
			return
		case <-ticker.C:
			if err := b.refreshProjectKeys(ctx); err != nil {
				slog.Warn("project refresh failed", "error", err)
			}
		}
	}
}
