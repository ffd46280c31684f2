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

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// InvalidationChannel is the redis pub/sub channel Publish sends to and
// Subscribe listens on. DirWatcher does not publish on it after a local
// reload; a message reaches it only through an explicit Publish call.
const InvalidationChannel = "taskmesh:registry:invalidate"

// Invalidator publishes and subscribes to cross-process registry reload
// notifications over redis. A nil Invalidator is valid and a no-op, so a
// worker started without REGISTRY_REDIS_ADDR just falls back to its own
// filesystem watch.
type Invalidator struct {
	client *goredis.Client
	logger *logrus.Logger
}

// NewInvalidator connects to addr. Call Close when done.
func NewInvalidator(addr string, logger *logrus.Logger) *Invalidator {
	return &Invalidator{
		client: goredis.NewClient(&goredis.Options{Addr: addr}),
		logger: logger,
	}
}

// Publish announces that the workflow descriptor named by workflowName
// changed locally, prompting other workers to reload it.
func (inv *Invalidator) Publish(ctx context.Context, workflowName string) error {
	if inv == nil {
		return nil
	}
	return inv.client.Publish(ctx, InvalidationChannel, workflowName).Err()
}

// Subscribe reloads dir into reg every time any worker publishes an
// invalidation, blocking until ctx is canceled. Run it on its own
// goroutine.
func (inv *Invalidator) Subscribe(ctx context.Context, dir string, reg *Registry[WorkflowDefinition]) {
	if inv == nil {
		return
	}
	sub := inv.client.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := LoadWorkflowDir(dir, reg); err != nil {
				if inv.logger != nil {
					inv.logger.WithError(err).WithField("workflow", msg.Payload).
						Warn("registry reload after invalidation failed")
				}
				continue
			}
			if inv.logger != nil {
				inv.logger.WithField("workflow", msg.Payload).Info("registry reloaded after remote invalidation")
			}
		}
	}
}

// Close releases the underlying redis connection.
func (inv *Invalidator) Close() error {
	if inv == nil {
		return nil
	}
	return inv.client.Close()
}
