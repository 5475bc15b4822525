// Package cmd implements the facegate command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "A face enrollment and identification service",
	Long: `Facegate enrolls people from captured face frames and identifies
them against the enrolled population. Descriptors are matched by
Euclidean distance with a configurable threshold; every attempt is
recorded in the access log.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
