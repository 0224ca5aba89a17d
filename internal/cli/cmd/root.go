// Package cmd implements the billsyncctl command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fslongjin/billsync/internal/cli/output"
	billsync "github.com/fslongjin/billsync/sdk/go"
)

const defaultAPIServer = "http://localhost:8080/api/v1"

var buildVersion = "dev"

var (
	cfgFile      string
	apiURL       string
	apiKey       string
	outputFormat string
	timeout      time.Duration
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "billsyncctl",
	Short: "billsyncctl - Drive a billsync server",
	Long: `billsyncctl talks to a billsync server over its HTTP API.

It starts full and incremental synchronizations of a billing month, watches
their progress, manages the periodic schedule and the upstream API token,
and queries the locally stored bills.`,
	Version:       "dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(version, commit, date string) error {
	buildVersion = version
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file path (default: ~/.config/billsync/config.yaml)")
	flags.StringVarP(&apiURL, "api-server", "s", defaultAPIServer, "API server address")
	flags.StringVar(&apiKey, "api-key", "", "API key sent as a bearer token")
	flags.StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	_ = viper.BindPFlag("api-server", flags.Lookup("api-server"))
	_ = viper.BindPFlag("api-key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("output", flags.Lookup("output"))
	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

// initConfig reads the config file and BILLSYNC_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "billsync"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("BILLSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func requestTimeout() time.Duration {
	if d := viper.GetDuration("timeout"); d > 0 {
		return d
	}
	return 30 * time.Second
}

// getAPIClient builds a client whose HTTP timeout is at least minTimeout.
func getAPIClient(minTimeout time.Duration) *billsync.Client {
	url := viper.GetString("api-server")
	if url == "" {
		url = defaultAPIServer
	}

	opts := []billsync.Option{
		billsync.WithTimeout(max(requestTimeout(), minTimeout)),
		billsync.WithUserAgent("billsyncctl/" + buildVersion),
	}
	if key := viper.GetString("api-key"); key != "" {
		opts = append(opts, billsync.WithAuthToken(key))
	}
	return billsync.NewClient(url, opts...)
}

// getContext returns a context bounded by the request timeout.
func getContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout())
}

func formatter(columns ...output.Column) output.Formatter {
	return output.NewFormatter(output.ParseFormat(viper.GetString("output")), columns...)
}

func currentMonth() string {
	return time.Now().Format("2006-01")
}
