package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// options holds command line values. Flags override the config file only
// when set explicitly.
type options struct {
	configFile  string
	logLevel    string
	metricsAddr string
	timeout     time.Duration

	accountIDs []string
	batchSize  int
	startDate  string
	endDate    string
	includeRaw bool
	sinkKind   string
	outputDir  string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "linkedin-pull",
		Short:         "Pull LinkedIn Marketing campaign data into tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `linkedin-pull extracts campaign groups, campaigns, creatives and their daily
analytics for a set of ad accounts and writes one table per requested output.`,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Overall run timeout")
	root.PersistentFlags().StringSliceVar(&opts.accountIDs, "account-ids", nil, "Comma-separated ad account ids")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "linkedin-pull v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	pullCmd := &cobra.Command{
		Use:   "pull",
		Short: "Run a pull and write the requested outputs",
		Long: `Run a pull: validate the configured accounts, fetch every category the
requested outputs depend on and write each output table to the sink.

Example:
  linkedin-pull pull --config linkedin.yaml --start-date 2024-01-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd, opts)
		},
	}
	pullCmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Ids per request for child queries (1-600)")
	pullCmd.Flags().StringVar(&opts.startDate, "start-date", "", "Analytics start date YYYY-MM-DD (switches to custom dates)")
	pullCmd.Flags().StringVar(&opts.endDate, "end-date", "", "Analytics end date YYYY-MM-DD (switches to custom dates)")
	pullCmd.Flags().BoolVar(&opts.includeRaw, "include-raw", false, "Add a raw_response column")
	pullCmd.Flags().StringVar(&opts.sinkKind, "sink", "", "Sink kind (csv, jsonl, s3)")
	pullCmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Output directory for csv and jsonl sinks")
	pullCmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")
	root.AddCommand(pullCmd)

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and account access without pulling data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts)
		},
	})

	return root
}
