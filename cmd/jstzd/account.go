package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jstzkernel/core"
	pkgconfig "jstzkernel/pkg/config"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "account"}
	cmd.AddCommand(accountBalanceCmd())
	return cmd
}

func accountBalanceCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "balance [address]",
		Short: "print an account's balance and nonce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pkgconfig.Load(env)
			if err != nil {
				return err
			}
			addr, err := core.ParseAddress(args[0])
			if err != nil {
				return err
			}

			hrt, err := core.OpenWALHostRuntime(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer hrt.Close()

			tx := core.NewTransaction(hrt, nil)
			defer tx.Rollback()
			acc, err := core.NewAccountRegistry(tx).Get(addr)
			if err != nil {
				return err
			}
			fmt.Printf("address: %s\nbalance: %d\nnonce: %d\nhas_code: %t\n", addr, acc.Balance, acc.Nonce, acc.Code != nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay name")
	return cmd
}
