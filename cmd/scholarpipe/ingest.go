// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmaravilla/scholarpipe/internal/ingest"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "scholarpipe/0.1"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch paper metadata from OpenAlex with Crossref and Unpaywall enrichment",
	Long: `Ingest queries OpenAlex for open-access works in a topic and year range,
sorted by citation count, enriches each with Crossref metadata and Unpaywall
open-access status, and stores the merged records. Papers already in the
store are skipped; each re-run appends a citation snapshot instead.

Paging is cursor-based. The next cursor is printed at the end of every run,
so an interrupted ingestion resumes with --cursor.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("topic", "", "OpenAlex concept ID to ingest (e.g. C18903297)")
	ingestCmd.Flags().Int("year-from", 0, "earliest publication year")
	ingestCmd.Flags().Int("year-to", 0, "latest publication year")
	ingestCmd.Flags().String("email", "", "contact email for the polite pools (required by Unpaywall)")
	ingestCmd.Flags().Int("per-page", 0, "OpenAlex page size (default 50, max 200)")
	ingestCmd.Flags().Int("max-pages", 0, "pages to fetch this run (default 1)")
	ingestCmd.Flags().String("cursor", "", "resume paging from a previous run's cursor")
	ingestCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" {
		topic = viper.GetString("ingest.topic_id")
	}
	if topic == "" {
		return fmt.Errorf("provide an OpenAlex concept ID via --topic or ingest.topic_id")
	}

	yearFrom, _ := cmd.Flags().GetInt("year-from")
	if yearFrom == 0 {
		yearFrom = viper.GetInt("ingest.year_from")
	}
	yearTo, _ := cmd.Flags().GetInt("year-to")
	if yearTo == 0 {
		yearTo = viper.GetInt("ingest.year_to")
	}
	if yearFrom == 0 || yearTo == 0 {
		return fmt.Errorf("provide a publication year range via --year-from and --year-to")
	}

	email, _ := cmd.Flags().GetString("email")
	email = secretDefault("openalex-email", email)
	if email == "" {
		email = viper.GetString("ingest.email")
	}

	perPage, _ := cmd.Flags().GetInt("per-page")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	cursor, _ := cmd.Flags().GetString("cursor")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	cfg := types.IngestConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		TopicID:  topic,
		YearFrom: yearFrom,
		YearTo:   yearTo,
		Email:    email,
		PerPage:  perPage,
		MaxPages: maxPages,
		Cursor:   cursor,
	}

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	runner := &ingest.Runner{
		Store:  s,
		Client: &http.Client{Timeout: cfg.Timeout},
		Config: cfg,
		Out:    os.Stdout,
	}

	sum, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion stopped after %d works: %w", sum.Fetched, err)
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d work(s) failed ingestion", sum.Failed)
	}
	return nil
}
