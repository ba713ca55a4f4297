package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/firecrest-hpc/firecrest_sdk_go/pkg/firecrest"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "firecrest",
	Short: "Command line client for the FirecREST API",
	Long: "Browses remote filesystems, submits scheduler jobs and runs staged " +
		"large-file transfers against a FirecREST deployment. Connection " +
		"settings are read from the environment (FIRECREST_URL plus either " +
		"FIRECREST_API_TOKEN or the client-credentials variables); a .env " +
		"file in the working directory is honoured.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		_ = logging.SetLogLevel("*", logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")
}

// newClient builds the SDK client from the environment, aborting the command
// on misconfiguration.
func newClient() *firecrest.Client {
	client, err := firecrest.NewFromEnv()
	cobra.CheckErr(err)
	return client
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
