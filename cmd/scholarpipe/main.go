// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scholarpipe CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmaravilla/scholarpipe/internal/secrets"
	"github.com/dmaravilla/scholarpipe/internal/store"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, otherwise the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the scholarpipe CLI.
var rootCmd = &cobra.Command{
	Use:   "scholarpipe",
	Short: "Scholarly paper metadata pipeline",
	Long: `scholarpipe builds a corpus of scholarly paper metadata. It ingests works
from OpenAlex enriched with Crossref and Unpaywall, downloads and parses
open-access PDFs, extracts typed entities from abstracts with a Generative
AI model, and scores abstracts for jargon density.

Each pipeline stage is a subcommand: ingest, download, parse, extract, and
jargon. Stages are resumable and can be re-run safely; the status command
shows how far the corpus has progressed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env values fill process env before secrets and viper read it.
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

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scholarpipe.yaml or ~/.config/scholarpipe/config.yaml)")
	rootCmd.PersistentFlags().String("store", "", "store backend: mongo or sqlite (default mongo)")
	rootCmd.PersistentFlags().String("database", "", "database name (default academic_language)")
	rootCmd.PersistentFlags().String("sqlite-path", "", "database file for the sqlite backend")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scholarpipe")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scholarpipe"))
		}
	}

	viper.SetEnvPrefix("SCHOLARPIPE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// storeConfig assembles the record store settings from flags, config file,
// and secrets, in that order of precedence.
func storeConfig() types.StoreConfig {
	backend, _ := rootCmd.PersistentFlags().GetString("store")
	if backend == "" {
		backend = viper.GetString("store.backend")
	}
	if backend == "" {
		backend = string(types.BackendMongo)
	}

	database, _ := rootCmd.PersistentFlags().GetString("database")
	if database == "" {
		database = viper.GetString("store.database")
	}
	if database == "" {
		database = "academic_language"
	}

	sqlitePath, _ := rootCmd.PersistentFlags().GetString("sqlite-path")
	if sqlitePath == "" {
		sqlitePath = viper.GetString("store.sqlite_path")
	}
	if sqlitePath == "" {
		sqlitePath = filepath.Join("data", "scholarpipe.db")
	}

	return types.StoreConfig{
		Backend:    types.StoreBackend(backend),
		MongoURI:   secretDefault("mongo-uri", viper.GetString("store.mongo_uri")),
		Database:   database,
		SQLitePath: sqlitePath,
	}
}

// openStore connects to the configured record store.
func openStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, storeConfig())
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
