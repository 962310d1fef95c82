package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	rootCmd := &cobra.Command{Use: "jstzd"}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(gasTableCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
