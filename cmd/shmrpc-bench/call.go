package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/shmrpc/rpcsync"
)

var callCmd = &cobra.Command{
	Use:   "call <method> [args...]",
	Short: "Issue a single call and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := args[0]
		callArgs := make([]any, len(args)-1)
		for i, a := range args[1:] {
			callArgs[i] = a
		}

		f := rpcsync.New(currentConfig())
		defer f.Shutdown()

		if err := f.ConnectSync(context.Background()); err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		result, err := f.CallSync(context.Background(), method, callArgs, flagTimeout)
		if err != nil {
			return fmt.Errorf("call %s: %w", method, err)
		}
		fmt.Printf("%v\n", result)
		return nil
	},
}
