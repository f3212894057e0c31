/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Manager owns the connect/run/reconnect lifecycle for one peer (§4.5
// "Reconnect"). Application code talks to whatever Session is current via
// Current; on every reconnect the handler's state is expected to reset to
// default, since the peer will re-dump its full state.
type Manager struct {
	cfg     Config
	handler EventHandler

	// OnReconnect, if set, is called after every reconnect handshake Run
	// performs. It is not called for the first connection, whether that was
	// made by Connect before Run or by Run itself.
	OnReconnect func()

	current *Session
}

// NewManager creates a Manager that has not yet connected.
func NewManager(cfg Config, handler EventHandler) *Manager {
	return &Manager{cfg: cfg, handler: handler}
}

// Current returns the active Session, or nil before the first successful
// connect or between a terminated session and its reconnect.
func (m *Manager) Current() *Session { return m.current }

// Connect performs the handshake and records the result as Current. It is
// safe to call before Run, so the caller observes a handshake failure
// synchronously instead of only through Run's return value.
func (m *Manager) Connect(ctx context.Context) error {
	s, err := Connect(ctx, m.cfg, m.handler)
	if err != nil {
		return err
	}
	m.current = s
	return nil
}

// Run runs the session loop to completion, reconnecting (via Connect, after
// waiting cfg.ReconnectDelay) if cfg.Reconnect is set, until ctx is
// cancelled or a non-reconnectable error occurs. If no session is current
// yet, Run performs the initial handshake itself.
func (m *Manager) Run(ctx context.Context) error {
	reconnecting := false
	for {
		if m.current == nil {
			if err := m.Connect(ctx); err != nil {
				return err
			}
			if reconnecting && m.OnReconnect != nil {
				m.OnReconnect()
			}
		}
		reconnecting = true

		s := m.current
		runErr := s.Run(ctx)
		m.current = nil

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !m.cfg.Reconnect {
			return runErr
		}

		log.Warnf("session terminated (%v), reconnecting in %s", runErr, m.cfg.ReconnectDelay)
		select {
		case <-time.After(m.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
