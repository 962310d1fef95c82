package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"jstzkernel/core"
)

func gasTableCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "gas-table"}
	lint := &cobra.Command{
		Use:   "lint",
		Short: "check every host call has an explicit gas price",
		Run: func(cmd *cobra.Command, args []string) {
			missing := core.GasTableLint()
			if len(missing) > 0 {
				for _, call := range missing {
					log.Printf("missing gas table entry for %s", call)
				}
				log.Fatalf("%d host call(s) missing an explicit price", len(missing))
			}
			fmt.Printf("checked %d host calls, no gas table gaps\n", len(core.AllHostCalls()))
		},
	}
	cmd.AddCommand(lint)
	return cmd
}
