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
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var lockStoreIDFlag uint16

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Acquire the storage lock for a media pool store and hold it until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		c, err := connect(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Disconnect()

		h, err := c.AcquireStorageLock(ctx, lockStoreIDFlag)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("store %d locked; press Ctrl-C to release\n", lockStoreIDFlag)
		<-ctx.Done()
		h.Release()
	},
}

func init() {
	RootCmd.AddCommand(lockCmd)
	lockCmd.Flags().Uint16Var(&lockStoreIDFlag, "store", 0, "media pool store id (0-63)")
}
