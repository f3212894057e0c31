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

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/micolous/necromancer/client"
	"github.com/micolous/necromancer/session"
)

// RootCmd is the entry point for atemctl; each subcommand dials its own
// short-lived connection, since atemctl is a one-shot CLI rather than a
// daemon holding a session open.
var RootCmd = &cobra.Command{
	Use:   "atemctl",
	Short: "Control a Blackmagic ATEM switcher over the network",
}

var (
	rootVerboseFlag bool
	rootAddrFlag    string
	rootPortFlag    int
	rootConfigFlag  string
	rootTimeoutFlag time.Duration
)

func init() {
	flags := RootCmd.PersistentFlags()
	flags.BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	flags.StringVar(&rootAddrFlag, "addr", "", "switcher IP address or hostname")
	flags.IntVar(&rootPortFlag, "port", 0, "switcher UDP port (default 9910)")
	flags.StringVar(&rootConfigFlag, "config", "", "path to a session config file")
	flags.DurationVar(&rootTimeoutFlag, "timeout", 5*time.Second, "command timeout")
}

// ConfigureVerbosity sets log verbosity from the parsed flags. Every
// subcommand's Run calls this before doing anything else.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

func sessionConfig() (session.Config, error) {
	cfg := session.DefaultConfig()
	if rootConfigFlag != "" {
		b, err := os.ReadFile(rootConfigFlag)
		if err != nil {
			return session.Config{}, fmt.Errorf("reading config %q: %w", rootConfigFlag, err)
		}
		cfg, err = session.ReadConfigBytes(b)
		if err != nil {
			return session.Config{}, err
		}
	}
	if rootAddrFlag != "" {
		cfg.Addr = rootAddrFlag
	}
	if rootPortFlag != 0 {
		cfg.Port = rootPortFlag
	}
	if err := cfg.Validate(); err != nil {
		return session.Config{}, err
	}
	return cfg, nil
}

// connect dials the switcher and runs the session loop in the background
// for the lifetime of ctx, returning a Client ready for requests.
func connect(ctx context.Context) (*client.Client, error) {
	cfg, err := sessionConfig()
	if err != nil {
		return nil, err
	}
	c, err := client.Connect(ctx, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s:%d: %w", cfg.Addr, cfg.Port, err)
	}
	go func() {
		if err := c.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warnf("session loop exited: %v", err)
		}
	}()
	return c, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rootTimeoutFlag)
}

// Execute is the CLI's entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
