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
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/micolous/necromancer/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current mirrored switcher state",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		printState(c.State())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print state updates as they arrive until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		// watch has no natural end, so it gets its own background context
		// rather than the shared --timeout one used by one-shot commands.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()

		printState(c.State())
		for diff := range c.SubscribeState() {
			fmt.Printf("--- update (flags=%#x) at %s ---\n", diff.Changed, time.Now().Format(time.RFC3339))
			printState(diff.Snapshot)
		}
	},
}

func printState(s *state.State) {
	fmt.Printf("%+v\n", s)
}

func init() {
	RootCmd.AddCommand(stateCmd)
	RootCmd.AddCommand(watchCmd)
}
