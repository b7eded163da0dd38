package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/shmrpc/rpcsync"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Attach to the daemon's shared region pair and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := rpcsync.New(currentConfig())
		defer f.Shutdown()

		if err := f.ConnectSync(context.Background()); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		fmt.Println("connected")
		return nil
	},
}
