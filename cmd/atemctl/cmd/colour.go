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

	"github.com/micolous/necromancer/protocol"
)

var (
	colourIDFlag  uint8
	colourHueFlag uint16
	colourSatFlag uint16
	colourLumFlag uint16
)

var colourCmd = &cobra.Command{
	Use:   "colour",
	Short: "Update a colour generator's HSL parameters",
	Long:  "Only the flags explicitly passed are sent to the switcher; the rest are left unchanged (bitmask-gated optional fields).",
	Run: func(cmd *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := commandContext()
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()

		p := protocol.SetColourGeneratorParams{ID: colourIDFlag}
		if cmd.Flags().Changed("hue") {
			p.Hue = &colourHueFlag
		}
		if cmd.Flags().Changed("saturation") {
			p.Saturation = &colourSatFlag
		}
		if cmd.Flags().Changed("luminance") {
			p.Luminance = &colourLumFlag
		}
		if err := c.SetColourGeneratorParams(ctx, p); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	RootCmd.AddCommand(colourCmd)
	flags := colourCmd.Flags()
	flags.Uint8Var(&colourIDFlag, "id", 0, "colour generator index")
	flags.Uint16Var(&colourHueFlag, "hue", 0, "hue (0-3599, tenths of a degree)")
	flags.Uint16Var(&colourSatFlag, "saturation", 0, "saturation (0-1000)")
	flags.Uint16Var(&colourLumFlag, "luminance", 0, "luminance (0-1000)")
}
