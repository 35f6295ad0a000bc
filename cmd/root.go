// Package cmd provides the assetc command-line interface.
//
// Configuration is read, highest priority first, from command-line flags,
// ASSETC_* environment variables (a .env file in the working directory is
// loaded first), and the configuration file: --config, ASSETC_CONFIG_FILE, or
// .assetc.yml in the current directory.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "assetc",
	Short: "On-demand, cache-aware asset compilation",
	Long: `assetc compiles source assets (CoffeeScript, Stylus, LESS, Sass, YAML,
Go templates, ...) into the artifacts a browser requests, the moment they are
requested, and only when the artifact is missing or stale.

Quick Start:
  assetc serve                 Serve the destination roots, compiling on demand
  assetc build /app.js         Compile the artifacts for request paths
  assetc backends              List the registered backends`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .assetc.yml, can also use ASSETC_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error, silent)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	bindFlag(rootCmd.PersistentFlags(), "log-level", "log_level")
	bindFlag(rootCmd.PersistentFlags(), "log-format", "log_format")
}

func initConfig() {
	// a missing .env is not an error
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ASSETC_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".assetc")
	}

	viper.SetEnvPrefix("ASSETC")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
		fmt.Fprintln(os.Stderr, "Cannot read config file:", err)
	}
}
