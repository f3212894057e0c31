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

var transitionMEFlag uint8

func addMEFlag(c *cobra.Command) {
	c.Flags().Uint8Var(&transitionMEFlag, "me", 0, "mix-effect bus index")
}

var cutCmd = &cobra.Command{
	Use:   "cut",
	Short: "Cut program and preview immediately on an M/E",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		if err := c.Cut(ctx, transitionMEFlag); err != nil {
			log.Fatal(err)
		}
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run the configured transition on an M/E",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		if err := c.Auto(ctx, transitionMEFlag); err != nil {
			log.Fatal(err)
		}
	},
}

var ftbCmd = &cobra.Command{
	Use:   "ftb",
	Short: "Run the fade-to-black transition on an M/E",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		if err := c.FadeToBlackAuto(ctx, transitionMEFlag); err != nil {
			log.Fatal(err)
		}
	},
}

var ctbBlackFlag bool

var ctbCmd = &cobra.Command{
	Use:   "ctb",
	Short: "Cut an M/E's program output to (or from) black",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		if err := c.CutToBlack(ctx, transitionMEFlag, ctbBlackFlag); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	RootCmd.AddCommand(cutCmd)
	RootCmd.AddCommand(autoCmd)
	RootCmd.AddCommand(ftbCmd)
	RootCmd.AddCommand(ctbCmd)
	addMEFlag(cutCmd)
	addMEFlag(autoCmd)
	addMEFlag(ftbCmd)
	addMEFlag(ctbCmd)
	ctbCmd.Flags().BoolVar(&ctbBlackFlag, "black", true, "true to cut to black, false to cut back from it")
}
