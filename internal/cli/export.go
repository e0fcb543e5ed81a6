/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gofountain/internal/config"
	"gofountain/internal/export"
	applog "gofountain/internal/log"
)

var (
	exportHideNotes bool
	batchJobs       int
	batchPreset     string
	batchFormats    []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scripts to files",
}

var exportPDFCmd = &cobra.Command{
	Use:   "pdf <file> <out.pdf>",
	Short: "Export one script as a draft PDF",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pdfOptions(app.cfg.Export)
		opts.HideNotes = exportHideNotes
		return RunExportPDF(cmd.OutOrStdout(), args[0], args[1], opts)
	},
}

var exportBatchCmd = &cobra.Command{
	Use:   "batch <outdir> <files...>",
	Short: "Export many scripts concurrently",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := export.BatchOptions{
			Preset:    export.PresetName(batchPreset),
			Formats:   batchFormats,
			Jobs:      batchJobs,
			PDF:       pdfOptions(app.cfg.Export),
			HideNotes: exportHideNotes,
		}
		return RunExportBatch(cmd.Context(), cmd.OutOrStdout(), args[0], args[1:], opts)
	},
}

func init() {
	exportCmd.PersistentFlags().BoolVar(&exportHideNotes, "hide-notes", false, "Leave notes out of the output")
	exportBatchCmd.Flags().IntVarP(&batchJobs, "jobs", "j", 0, "Scripts exported at once (default: number of CPUs)")
	exportBatchCmd.Flags().StringVar(&batchPreset, "preset", string(export.PresetPrint), "Preset: print (pdf) or web (html, json)")
	exportBatchCmd.Flags().StringSliceVar(&batchFormats, "format", nil, "Formats to write, overriding the preset: pdf, html, json")
	exportCmd.AddCommand(exportPDFCmd, exportBatchCmd)
	rootCmd.AddCommand(exportCmd)
}

func pdfOptions(ec config.ExportConfig) export.PDFOptions {
	return export.PDFOptions{
		PageSize:     ec.PageSize,
		FontFamily:   ec.FontFamily,
		FontSize:     ec.FontSize,
		SceneNumbers: ec.SceneNumbers,
	}
}

// RunExportPDF parses in and writes a PDF to out.
func RunExportPDF(w io.Writer, in, out string, opts export.PDFOptions) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	res := parseLogged(in, data)
	if err := export.PDF(res, out, opts); err != nil {
		return err
	}
	applog.WithComponent("export").Info("pdf written", slog.String("input", in), slog.String("output", out))
	fmt.Fprintf(w, "%s %s\n", okStyle.Render("wrote"), out)
	return nil
}

// RunExportBatch exports files into outDir and lists what was written.
func RunExportBatch(ctx context.Context, w io.Writer, outDir string, files []string, opts export.BatchOptions) error {
	results, err := export.Batch(ctx, files, outDir, opts)
	if err != nil {
		return err
	}
	n := 0
	for _, r := range results {
		for _, out := range r.Outputs {
			fmt.Fprintf(w, "%s %s\n", okStyle.Render("wrote"), out)
			n++
		}
	}
	fmt.Fprintf(w, "exported %d scripts, %d files\n", len(results), n)
	return nil
}
