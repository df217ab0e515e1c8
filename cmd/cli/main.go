package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opal/internal/common"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "opal",
	Short: "Batched record scans over a column-family store",
	Long: `opal - batched record fetcher

Without a subcommand, opal starts an interactive session over an
in-memory store. Rows written there can be scanned back through the
batched iterator, including its projection and failure paths.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL()
	},
}

var (
	demoRows    int
	demoBatch   int
	demoColumns []string
	demoTenant  int
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Seed synthetic rows and scan them back in batches",
	Long: `Seed a fresh in-memory table with synthetic rows, then drive the
batched iterator over all of them and print what comes back.
Examples:
  opal demo --rows 25 --batch 4
  opal demo --rows 10 --columns name,seq --tenant -1234`,
	RunE: runDemo,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log fetch round trips")

	demoCmd.Flags().IntVar(&demoRows, "rows", 10, "Number of rows to seed")
	demoCmd.Flags().IntVar(&demoBatch, "batch", 3, "Batch size for the scan")
	demoCmd.Flags().StringSliceVar(&demoColumns, "columns", nil, "Column projection (default: all)")
	demoCmd.Flags().IntVar(&demoTenant, "tenant", 0, "Tenant id")
	rootCmd.AddCommand(demoCmd)

	cobra.OnInitialize(func() {
		common.LoggingEnabled = verbose
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
