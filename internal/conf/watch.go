package conf

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce coalesces the burst of events editors emit on save
const reloadDebounce = 500 * time.Millisecond

// WatchChatsConfig reloads path on change and hands the result to onChange.
// The parent directory is watched so atomic renames are seen.
// It blocks until ctx is done.
func WatchChatsConfig(ctx context.Context, path string, onChange func(*ChatsConfig), logger zerolog.Logger) error {
	log := logger.With().Str("component", "conf").Str("path", path).Logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")

		case <-fire:
			fire = nil
			cfg, _, err := LoadChatsConfig(path)
			if err != nil {
				log.Warn().Err(err).Msg("chats config reload failed, keeping previous")
				continue
			}
			log.Info().Int("chats", len(cfg.Chats)).Msg("chats config reloaded")
			onChange(cfg)
		}
	}
}
