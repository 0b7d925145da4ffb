/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package graph

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

const defaultDebounce = 100 * time.Millisecond

// EdgeStore holds the current edge list and reloads it when its file changes.
// A file that fails to parse leaves the previous list in place.
type EdgeStore struct {
	path     string
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.RWMutex
	edges    []models.DependencyEdge
	onChange []func([]models.DependencyEdge)

	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// NewEdgeStore creates a store seeded with static edges. With a non-empty path
// the file is loaded immediately and replaces the static list.
func NewEdgeStore(path string, static []models.DependencyEdge, logger *zap.Logger) (*EdgeStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	edges, err := NormalizeEdges(static)
	if err != nil {
		return nil, err
	}

	s := &EdgeStore{
		path:     path,
		logger:   logger,
		debounce: defaultDebounce,
		edges:    edges,
		done:     make(chan struct{}),
	}

	if path != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Edges returns a copy of the current list.
func (s *EdgeStore) Edges() []models.DependencyEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.DependencyEdge(nil), s.edges...)
}

// OnChange registers fn to run after every successful reload.
func (s *EdgeStore) OnChange(fn func([]models.DependencyEdge)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onChange = append(s.onChange, fn)
}

// Reload reads the file now.
func (s *EdgeStore) Reload() error {
	edges, err := LoadEdges(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.edges = edges
	callbacks := make([]func([]models.DependencyEdge), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(append([]models.DependencyEdge(nil), edges...))
	}

	return nil
}

// Watch reloads on file changes until ctx ends or Stop is called. The parent
// directory is watched so editors that replace the file are followed.
func (s *EdgeStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return errNoEdgesFile
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()

		return err
	}

	s.watcher = w

	s.wg.Add(1)

	go s.loop(ctx)

	return nil
}

// Stop ends the watch loop and waits for it.
func (s *EdgeStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		if s.watcher != nil {
			_ = s.watcher.Close()
		}
	})

	s.wg.Wait()
}

func (s *EdgeStore) loop(ctx context.Context) {
	defer s.wg.Done()

	target := filepath.Clean(s.path)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}

			timerC = timer.C
		case <-timerC:
			timerC = nil

			if err := s.Reload(); err != nil {
				s.logger.Warn("Keeping previous edge list", zap.String("path", s.path), zap.Error(err))

				continue
			}

			s.logger.Info("Reloaded edge list", zap.String("path", s.path), zap.Int("edges", len(s.Edges())))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			s.logger.Warn("Edge watcher error", zap.Error(err))
		}
	}
}
