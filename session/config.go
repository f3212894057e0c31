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

// Package session owns the connect handshake, the main receive/dispatch
// loop, disconnect and the reconnect loop (§4.5). It is the sole mutator of
// the reliability transport's state.
package session

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/micolous/necromancer/transport"
)

// HandshakeClientPacketID is the opaque stamp used on the initial Connect
// packet (§4.5). Several other values have been observed in the wild (§9
// open questions); this one is the only one this library emits itself.
const HandshakeClientPacketID = 0xB1

// PostHandshakeClientPacketID is the opaque stamp used on the unsequenced
// ack that follows ConnectAck, triggering the peer's full state dump.
const PostHandshakeClientPacketID = 0xD4

// Config describes one session's connection parameters.
type Config struct {
	Addr           string        `yaml:"addr"`
	Port           int           `yaml:"port"`
	Reconnect      bool          `yaml:"reconnect"`
	Handshake      time.Duration `yaml:"handshake_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	Transport transport.Config `yaml:"transport"`
}

// DefaultConfig returns a Config with the spec-mandated timings: 1s
// handshake timeout, 1s reconnect delay, reconnect disabled by default.
func DefaultConfig() Config {
	return Config{
		Port:           transport.DefaultPort,
		Handshake:      time.Second,
		ReconnectDelay: time.Second,
		Transport:      transport.DefaultConfig(),
	}
}

// Validate reports whether c is internally consistent.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.Port <= 0 || c.Port > 0xffff {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Handshake <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}
	c.Transport.Addr = c.Addr
	c.Transport.Port = c.Port
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("invalid transport config: %w", err)
	}
	return nil
}

// ReadConfigBytes parses b as a session Config (for config file loading by
// cmd/atemctl).
func ReadConfigBytes(b []byte) (Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return c, nil
}
