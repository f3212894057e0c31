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
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var startupCmd = &cobra.Command{
	Use:   "startup",
	Short: "Manage the switcher's saved power-on configuration",
}

var startupSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current configuration as the power-on default",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		if err := c.SaveStartupSettings(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

var startupClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the saved power-on default",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		if err := c.ClearStartupSettings(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

var startupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Re-apply the saved power-on default immediately",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		if err := c.RestoreStartupSettings(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	RootCmd.AddCommand(startupCmd)
	startupCmd.AddCommand(startupSaveCmd, startupClearCmd, startupRestoreCmd)
}
