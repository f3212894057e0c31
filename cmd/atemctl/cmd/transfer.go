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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/micolous/necromancer/protocol"
)

var (
	uploadIndexFlag uint32
	uploadNameFlag  string
	uploadDescFlag  string
	uploadRLEFlag   bool
)

var uploadStillCmd = &cobra.Command{
	Use:   "upload-still FILE",
	Short: "Upload an uncompressed still image to a media pool slot",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}

		// uploads of any real still image run well past the shared
		// --timeout default, since the switcher paces chunk bursts.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()

		name := uploadNameFlag
		if name == "" {
			name = args[0]
		}
		if err := c.UploadStillImage(ctx, uploadIndexFlag, name, uploadDescFlag, data, uploadRLEFlag); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("uploaded %s to slot %d\n", args[0], uploadIndexFlag)
	},
}

var (
	downloadStoreFlag uint16
	downloadIndexFlag uint32
	downloadTypeFlag  uint8
)

var downloadCmd = &cobra.Command{
	Use:   "download FILE",
	Short: "Download an asset from a media pool slot",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()

		f, err := os.Create(args[0])
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()

		sink, err := c.StartFileDownload(ctx, downloadStoreFlag, downloadIndexFlag, protocol.FileType(downloadTypeFlag))
		if err != nil {
			log.Fatal(err)
		}
		var total int
		for chunk := range sink {
			if chunk.Err != nil {
				log.Fatal(chunk.Err)
			}
			n, err := f.Write(chunk.Payload)
			if err != nil {
				log.Fatal(err)
			}
			total += n
		}
		fmt.Printf("downloaded %d bytes to %s\n", total, args[0])
	},
}

func init() {
	RootCmd.AddCommand(uploadStillCmd)
	RootCmd.AddCommand(downloadCmd)

	uf := uploadStillCmd.Flags()
	uf.Uint32Var(&uploadIndexFlag, "index", 0, "media pool slot index")
	uf.StringVar(&uploadNameFlag, "name", "", "asset name (defaults to the file path)")
	uf.StringVar(&uploadDescFlag, "description", "", "asset description")
	uf.BoolVar(&uploadRLEFlag, "rle", false, "data is already RLE-compressed")

	df := downloadCmd.Flags()
	df.Uint16Var(&downloadStoreFlag, "store", 0, "media pool store id (0-63)")
	df.Uint32Var(&downloadIndexFlag, "index", 0, "asset index within the store")
	df.Uint8Var(&downloadTypeFlag, "type", uint8(protocol.FileTypeStillFrame), "asset type (0=still, 1=audio, 2=multiview label, 3=macro)")
}
