// Copyright 2026 The Taskmesh Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultReloadDebounce = 500 * time.Millisecond

// DirWatcher watches REGISTRY_CONFIG_DIR for workflow descriptor changes
// and reloads the workflow registry on a debounced timer, so a burst of
// writes from a config-management tool triggers one reload, not N.
type DirWatcher struct {
	dir      string
	reg      *Registry[WorkflowDefinition]
	logger   *logrus.Logger
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewDirWatcher constructs a watcher over dir. Call Start to begin
// watching; the initial load still has to be done by the caller via
// LoadWorkflowDir.
func NewDirWatcher(dir string, reg *Registry[WorkflowDefinition], logger *logrus.Logger) *DirWatcher {
	return &DirWatcher{
		dir:      dir,
		reg:      reg,
		logger:   logger,
		debounce: defaultReloadDebounce,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching. It returns once the watch is registered with the
// OS; events are handled on a background goroutine until ctx is canceled
// or Stop is called.
func (w *DirWatcher) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		_ = fsWatcher.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fsWatcher
	w.mu.Unlock()

	go w.watchLoop()
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Stop terminates the watch, idempotent.
func (w *DirWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

func (w *DirWatcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.WithError(err).Warn("registry watcher error")
			}
		}
	}
}

func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".yaml" && filepath.Ext(event.Name) != ".yml" {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.scheduleReload()
}

func (w *DirWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		if err := LoadWorkflowDir(w.dir, w.reg); err != nil {
			if w.logger != nil {
				w.logger.WithError(err).Warn("registry reload failed")
			}
			return
		}
		if w.logger != nil {
			w.logger.WithField("dir", w.dir).Info("registry reloaded from filesystem change")
		}
	})
}
