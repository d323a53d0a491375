// Package cmd implements the command-line interface for the feeds service.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/feeds/cmd/refresh"
	"github.com/jonesrussell/north-cloud/feeds/cmd/serve"
	"github.com/jonesrussell/north-cloud/feeds/cmd/sources"
	"github.com/jonesrussell/north-cloud/feeds/internal/config"
)

// Version is set at build time.
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug mode for all commands
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "feeds",
		Short: "Feed normalization and refresh service",
		Long: `Fetches RSS/Atom sources on a schedule, normalizes every item into the
canonical schema with per-source patch programs and serves ranked,
paginated feeds over HTTP.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// .env is optional
	_ = godotenv.Load()

	// Parse flags early so --config and --debug are known before viper reads
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or /etc/feeds/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feeds version %s\n", Version)
		},
	})

	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(refresh.Command())
	rootCmd.AddCommand(sources.Command())
}

// initConfig reads in the config file and environment overrides.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/feeds")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
		// No config file: defaults and environment only
	}

	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}

	return nil
}
