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
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/micolous/necromancer/protocol"
)

var (
	inputsMEFlag     uint8
	inputsSourceFlag uint16
)

func addMESourceFlags(c *cobra.Command) {
	flags := c.Flags()
	flags.Uint8Var(&inputsMEFlag, "me", 0, "mix-effect bus index")
	flags.Uint16Var(&inputsSourceFlag, "source", 0, "video source id")
}

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Set the program input on an M/E",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		src := protocol.VideoSource(inputsSourceFlag)
		if err := c.SetProgramInput(ctx, inputsMEFlag, src); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("ME%d program -> %s\n", inputsMEFlag, src)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Set the preview input on an M/E",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()
		src := protocol.VideoSource(inputsSourceFlag)
		if err := c.SetPreviewInput(ctx, inputsMEFlag, src); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("ME%d preview -> %s\n", inputsMEFlag, src)
	},
}

func init() {
	RootCmd.AddCommand(programCmd)
	RootCmd.AddCommand(previewCmd)
	addMESourceFlags(programCmd)
	addMESourceFlags(previewCmd)
}
