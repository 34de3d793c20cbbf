// Package file keeps a flag store in step with a configuration file on the
// local filesystem.
package file

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pennon-io/pennon/pkg/logger"
	"github.com/pennon-io/pennon/pkg/store"
)

// Sync loads a flag configuration file into a store and reapplies it on
// every change. The file is the source of truth; the store always mirrors
// its most recent parseable content.
type Sync struct {
	// URI is the path of the configuration file.
	URI string

	store  *store.Store
	logger *logger.Logger
}

func New(log *logger.Logger, flagStore *store.Store, uri string) *Sync {
	return &Sync{
		URI:    uri,
		store:  flagStore,
		logger: log.WithFields(zap.String("component", "filesync"), zap.String("uri", uri)),
	}
}

// Run applies the file once, then watches it until the context is cancelled.
// The initial load must succeed; failures on later changes are logged and
// leave the previously applied configuration serving.
func (s *Sync) Run(ctx context.Context) error {
	if err := s.apply(); err != nil {
		return fmt.Errorf("initial load of %s: %w", s.URI, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.URI); err != nil {
		return fmt.Errorf("watching %s: %w", s.URI, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handle(watcher, event)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("file watcher error", zap.Error(watchErr))
		}
	}
}

func (s *Sync) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		if err := s.apply(); err != nil {
			s.logger.Error("configuration not applied", zap.Error(err))
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		// editors and config managers usually replace the file rather than
		// write it in place, which silently drops the watch
		if err := s.rewatch(watcher); err != nil {
			s.logger.Error("lost watch on configuration file", zap.Error(err))
			return
		}
		if err := s.apply(); err != nil {
			s.logger.Error("configuration not applied", zap.Error(err))
		}
	}
}

func (s *Sync) rewatch(watcher *fsnotify.Watcher) error {
	_ = watcher.Remove(s.URI)

	var err error
	for attempt := 0; attempt < 10; attempt++ {
		if err = watcher.Add(s.URI); err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return err
}

func (s *Sync) apply() error {
	raw, err := os.ReadFile(s.URI)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.URI, err)
	}

	changed, err := s.store.Update(string(raw))
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		s.logger.Info("applied configuration file", zap.Strings("changedFlags", changed))
	}
	return nil
}
