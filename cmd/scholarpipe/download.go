// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmaravilla/scholarpipe/internal/download"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

const defaultDelay = 1 * time.Second

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download open-access PDFs for pending papers",
	Long: `Download fetches PDFs for papers in the pending_download state and files
them under the PDF directory by publication year. Successful downloads move
papers to downloaded; unusable URLs move them to failed with the reason
recorded. Papers whose PDF is already on disk are advanced without a fetch.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Int("limit", 0, "papers to process this run (0 means all pending)")
	downloadCmd.Flags().String("pdf-dir", "pdfs", "base directory for downloaded PDFs")
	downloadCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	downloadCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	pdfDir, _ := cmd.Flags().GetString("pdf-dir")
	delay, _ := cmd.Flags().GetDuration("delay")
	if delay == 0 {
		delay = defaultDelay
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	runner := &download.Runner{
		Store:  s,
		Client: &http.Client{Timeout: timeout},
		Config: types.DownloadConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   timeout,
				UserAgent: defaultUserAgent,
			},
			PDFDir: pdfDir,
			Delay:  delay,
		},
		Out: os.Stdout,
	}

	result, err := runner.Run(ctx, limit)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed download", result.Failed)
	}
	return nil
}
