// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the diligence-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/diligence-engine/internal/secrets"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const defaultUserAgent = "diligence-engine/0.1"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the diligence-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "diligence-engine",
	Short: "Assemble regulatory filing packages with market context",
	Long: `diligence-engine retrieves a company's regulatory filings, classifies them
into category buckets, and assembles them into a self-describing package
alongside optional market data and short-interest snapshots.

The full pipeline runs through the fetch command. The resolve, filings,
market, and shortinterest commands expose individual pipeline stages; runs
queries the history of past assemblies.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env first, then .secrets/; both are optional.
		_ = godotenv.Load()
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./diligence-engine.yaml or ~/.config/diligence-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("diligence-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "diligence-engine"))
		}
	}

	viper.SetEnvPrefix("DILIGENCE_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles stage configuration from the config file and
// environment, then fills still-empty credentials from .secrets/. Values
// set through flags are applied by each command afterwards.
func pipelineConfig() types.PipelineConfig {
	cfg := types.PipelineConfig{
		Registry: types.RegistryConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("registry.timeout"),
				UserAgent: defaultUserAgent,
			},
			ContactEmail: viper.GetString("registry.contact_email"),
			RateLimit:    viper.GetInt("registry.rate_limit"),
			RateWindow:   viper.GetDuration("registry.rate_window"),
		},
		MarketData: types.MarketDataConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("market_data.timeout"),
				UserAgent: defaultUserAgent,
			},
			APIKey:     viper.GetString("market_data.api_key"),
			RateLimit:  viper.GetInt("market_data.rate_limit"),
			RateWindow: viper.GetDuration("market_data.rate_window"),
		},
		ShortInterest: types.ShortInterestConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("short_interest.timeout"),
				UserAgent: defaultUserAgent,
			},
			ClientID:     viper.GetString("short_interest.client_id"),
			ClientSecret: viper.GetString("short_interest.client_secret"),
		},
		Render: types.RenderConfig{
			Engine: types.RenderEngine(viper.GetString("render.engine")),
		},
		Ledger: types.LedgerConfig{
			Path: viper.GetString("ledger.path"),
		},
		Assembly: types.AssemblyConfig{
			OutputDir:       viper.GetString("assembly.output_dir"),
			DocumentTimeout: viper.GetDuration("assembly.document_timeout"),
			DownloadWorkers: viper.GetInt("assembly.download_workers"),
		},
	}
	secrets.Apply(loadedSecrets, &cfg)
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
