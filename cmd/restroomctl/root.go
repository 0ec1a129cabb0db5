package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// newRootCommand builds the restroomctl command tree.
func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "restroomctl",
		Short: "Command line client for the restroom map API",
		Long: `restroomctl queries and edits the restroom map through its REST API.

Results are printed to stdout as JSON. Logs go to stderr. The command exits
non-zero when the API call failed after retries.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", getEnvOrDefault(envConfigPath, ""),
		"Path to configuration file (default: restroommap.yaml if present)")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "API base URL, overriding the configuration")
	pf.StringVar(&a.flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.logFormat, "log-format", "json", "Log format (json, console)")
	pf.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	root.AddCommand(
		newNearbyCommand(a),
		newShowCommand(a),
		newDetailsCommand(a),
		newReviewsCommand(a),
		newReviewCommand(a),
		newAddCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newLocationsCommand(a),
		newRatingsCommand(a),
		newRateCommand(a),
		newVersionCommand(out),
	)

	return root
}

// newVersionCommand prints build information.
func newVersionCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			_, _ = fmt.Fprintf(out, "restroomctl version %s\n", version)
			_, _ = fmt.Fprintf(out, "  Build time: %s\n", buildTime)
			_, _ = fmt.Fprintf(out, "  Git commit: %s\n", gitCommit)
		},
	}
}
