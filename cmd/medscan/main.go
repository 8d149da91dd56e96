// medscan is the command line client for the document scanning backend. It
// submits page images, polls jobs to completion, and fetches history.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthill1650-eng/Medscan/constants"
	"github.com/anthill1650-eng/Medscan/internal/coordinator"
	"github.com/anthill1650-eng/Medscan/internal/entity"
	"github.com/anthill1650-eng/Medscan/internal/scanapi"
)

var (
	flagConfig  string
	flagServer  string
	flagVerbose bool

	cfg cliConfig
)

func main() {
	root := &cobra.Command{
		Use:           "medscan",
		Short:         "Scan medical documents and explain the lab values in them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			var err error
			cfg, err = loadCLIConfig(flagConfig)
			if err != nil {
				return err
			}
			if flagServer != "" {
				cfg.Server = flagServer
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "path to yaml config file")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "backend base URL (overrides config)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newScanCmd())
	root.AddCommand(newTrackCmd())
	root.AddCommand(newLabsCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newExportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".medscan.yaml")
}

func newAPIClient() *scanapi.Client {
	return scanapi.NewClient(scanapi.Config{
		BaseURL:       cfg.Server,
		UploadTimeout: time.Duration(cfg.UploadTimeout),
		StatusTimeout: time.Duration(cfg.StatusTimeout),
	}, slog.Default())
}

func newCoordinator(api coordinator.API) (*coordinator.Coordinator, error) {
	policy, err := cfg.errorPolicy()
	if err != nil {
		return nil, err
	}
	lastStatus := constants.DocStatus("")
	return coordinator.New(api, coordinator.Config{
		PollInterval: time.Duration(cfg.PollInterval),
		MaxAttempts:  cfg.MaxAttempts,
		ErrorPolicy:  policy,
	}, slog.Default(), coordinator.WithOnUpdate(func(snap coordinator.Snapshot) {
		if snap.Status == lastStatus {
			return
		}
		lastStatus = snap.Status
		fmt.Fprintf(os.Stderr, "%s  %s\n", snap.DocID, snap.Status)
	})), nil
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <image> [image...]",
		Short: "Upload page images and wait for the processed result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]scanapi.UploadFile, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				ext := constants.NormalizeExt(filepath.Ext(path))
				if !constants.IsAllowedExt(ext) {
					return fmt.Errorf("%s: unsupported file type %q (want jpg, png or webp)", path, ext)
				}
				files = append(files, scanapi.UploadFile{
					Filename:    filepath.Base(path),
					ContentType: contentTypeFor(ext),
					Data:        data,
				})
			}

			api := newAPIClient()
			coord, err := newCoordinator(api)
			if err != nil {
				return err
			}

			snap, err := coord.Submit(cmd.Context(), files...)
			if err != nil {
				return err
			}
			outcome, err := coord.Track(cmd.Context(), snap.DocID)
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}
}

func newTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <docId>",
		Short: "Resume polling a previously submitted document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := newCoordinator(newAPIClient())
			if err != nil {
				return err
			}
			outcome, err := coord.Track(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}
}

func newLabsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labs <textfile>",
		Short: "Explain lab values found in a plain text file, without uploading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			report, err := newAPIClient().ExplainLabs(cmd.Context(), string(data))
			if err != nil {
				return err
			}
			printLabReport(report)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scans, err := newAPIClient().ListScans(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(scans) == 0 {
				fmt.Println("no scans recorded")
				return nil
			}
			for _, s := range scans {
				line := fmt.Sprintf("%s  %-10s  %s", s.ID, s.Status, s.Filename)
				if s.LabCount > 0 {
					line += fmt.Sprintf("  (%d labs)", s.LabCount)
				}
				fmt.Println(line)
				if s.OverallSummary != "" {
					fmt.Println("    " + s.OverallSummary)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of scans to list")
	return cmd
}

func newExportCmd() *cobra.Command {
	var out, from, to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download scan history as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient().ExportXLSX(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "scans.xlsx", "output file")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	return cmd
}

func contentTypeFor(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

func printOutcome(outcome coordinator.Outcome) error {
	switch outcome.Kind {
	case coordinator.OutcomeDone:
		printSnapshot(outcome.Snapshot)
		return nil
	case coordinator.OutcomeJobFailed:
		return fmt.Errorf("processing failed: %s", outcome.ErrorDetail)
	case coordinator.OutcomeTimedOut:
		return fmt.Errorf("still processing after the poll budget; run 'medscan track %s' to keep waiting", outcome.Snapshot.DocID)
	}
	return fmt.Errorf("unexpected outcome %q", outcome.Kind)
}

func printSnapshot(snap coordinator.Snapshot) {
	fmt.Printf("document %s (%s, %d pages)\n", snap.DocID, snap.Status, len(snap.Pages))
	if snap.Summary != "" {
		fmt.Println("\nsummary:")
		fmt.Println(indent(snap.Summary, "  "))
	}
	if snap.Labs != nil {
		fmt.Println()
		printLabReport(snap.Labs)
	}
}

func printLabReport(report *entity.LabReport) {
	fmt.Printf("labs found: %d\n", report.Count)
	if report.OverallSummary != "" {
		fmt.Println(report.OverallSummary)
	}
	for _, item := range report.Items {
		fmt.Printf("\n%s (%s, %s)\n", item.Name, item.Status, item.Severity)
		if item.Sentence != "" {
			fmt.Println(indent(item.Sentence, "  "))
		}
		if item.WhatItIs != "" {
			fmt.Println(indent(item.WhatItIs, "  "))
		}
		for _, step := range item.NextSteps {
			fmt.Println("  - " + step)
		}
	}
	if len(report.Terms) > 0 {
		fmt.Println("\nterms:")
		for term, meaning := range report.Terms {
			fmt.Printf("  %s: %s\n", term, meaning)
		}
	}
	if report.Note != "" {
		fmt.Println("\n" + report.Note)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
