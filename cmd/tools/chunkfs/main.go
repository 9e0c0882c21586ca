// chunkfs is the command line client of the chunkfs namenode.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type globalOptions struct {
	server  string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "chunkfs",
		Short: "chunkfs - client for the chunked file store",
		Long: `chunkfs talks to a chunkfs namenode over HTTP.

Examples:
  # Upload a file split into 4 chunks
  chunkfs upload ./report.pdf --chunks 4 --dir /docs

  # Download it again
  chunkfs get report.pdf --dir /docs -o report.pdf

  # Browse the namespace
  chunkfs mkdir /docs/2024
  chunkfs ls /docs

  # Cluster state
  chunkfs status
  chunkfs re-replicate report.pdf --dir /docs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", "localhost:5000", "namenode address")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chunkfs %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	})

	addFileCommands(rootCmd, opts)
	addNamespaceCommands(rootCmd, opts)
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newBenchCmd(opts))

	return rootCmd
}

func (o *globalOptions) client() *apiClient {
	return newAPIClient(o.server, o.timeout)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
