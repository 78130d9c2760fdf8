package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "relay-im",
		Short:         "Multi-client text chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serverCmd(), clientCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
