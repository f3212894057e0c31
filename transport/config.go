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

// Package transport implements the reliable transport on top of a bare UDP
// socket: packet sequencing, selective acknowledgement, retransmission, rx
// reordering and the liveness probe.
package transport

import (
	"fmt"
	"time"
)

// DefaultPort is the switcher's well-known control port.
const DefaultPort = 9910

// Config describes a transport's timing and capacity knobs. Defaults match
// the values the session layer is specified against; callers needing
// different values (e.g. integration tests) should override sparingly.
type Config struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`

	RetransmitInterval  time.Duration `yaml:"retransmit_interval"`
	RetransmitRetries   int           `yaml:"retransmit_retries"`
	OutstandingMax      int           `yaml:"outstanding_max"`
	ReorderMaxEntries   int           `yaml:"reorder_max_entries"`
	ReorderMaxAge       time.Duration `yaml:"reorder_max_age"`
	AckAllocationWindow int           `yaml:"ack_allocation_window"`
}

// DefaultConfig returns the spec-mandated timing constants.
func DefaultConfig() Config {
	return Config{
		Port:                DefaultPort,
		RetransmitInterval:  500 * time.Millisecond,
		RetransmitRetries:   3,
		OutstandingMax:      512,
		ReorderMaxEntries:   64,
		ReorderMaxAge:       2 * time.Second,
		AckAllocationWindow: 512,
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
	if c.RetransmitInterval <= 0 {
		return fmt.Errorf("retransmit_interval must be positive")
	}
	if c.RetransmitRetries < 0 {
		return fmt.Errorf("retransmit_retries must be 0 or positive")
	}
	if c.OutstandingMax <= 0 {
		return fmt.Errorf("outstanding_max must be positive")
	}
	if c.ReorderMaxEntries <= 0 {
		return fmt.Errorf("reorder_max_entries must be positive")
	}
	if c.ReorderMaxAge <= 0 {
		return fmt.Errorf("reorder_max_age must be positive")
	}
	return nil
}
