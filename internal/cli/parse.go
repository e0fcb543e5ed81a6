/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gofountain/internal/fountain"
	applog "gofountain/internal/log"
	"gofountain/internal/render"
)

// Output formats of parse and library show.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatHTML = "html"
)

// ParseOptions selects how a parsed script is written.
type ParseOptions struct {
	Format     string
	HideNotes  bool
	Standalone bool // html: full document
	Color      bool // text: force ANSI styling
	Width      int  // text: page width
	Validate   bool // json: check output against the schema
}

var parseFlags ParseOptions

var parseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Parse a Fountain file and print it as text, JSON or HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := parseFlags
		if !cmd.Flags().Changed("format") {
			opts.Format = app.cfg.General.Format
		}
		if !cmd.Flags().Changed("hide-notes") {
			opts.HideNotes = app.cfg.General.HideNotes
		}
		r, name, err := openInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		defer r.Close()
		return RunParse(cmd.OutOrStdout(), r, name, opts)
	},
}

func init() {
	f := parseCmd.Flags()
	f.StringVarP(&parseFlags.Format, "format", "f", FormatText, "Output format: text, json, html")
	f.BoolVar(&parseFlags.HideNotes, "hide-notes", false, "Leave notes out of the output")
	f.BoolVar(&parseFlags.Standalone, "standalone", false, "HTML: emit a complete document with styles")
	f.BoolVar(&parseFlags.Color, "color", false, "Text: force colored output")
	f.IntVar(&parseFlags.Width, "width", 0, "Text: page width in columns")
	f.BoolVar(&parseFlags.Validate, "validate", false, "JSON: validate output against the schema")
	rootCmd.AddCommand(parseCmd)
}

// openInput opens path, or wraps stdin when path is "-".
func openInput(stdin io.Reader, path string) (io.ReadCloser, string, error) {
	if path == "-" {
		return io.NopCloser(stdin), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// RunParse reads a script from r and writes it to w in opts.Format.
func RunParse(w io.Writer, r io.Reader, name string, opts ParseOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	res := parseLogged(name, data)
	return writeResult(w, res, opts)
}

func parseLogged(name string, data []byte) fountain.Result {
	start := time.Now()
	res := fountain.ParseBytes(data)
	applog.WithComponent("parse").Debug("parsed",
		slog.String("input", name),
		slog.Int("tokens", len(res.Tokens)),
		slog.Int("metadata", len(res.Metadata)),
		applog.Since(start))
	return res
}

func writeResult(w io.Writer, res fountain.Result, opts ParseOptions) error {
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return render.Text(w, res, render.TextOptions{HideNotes: opts.HideNotes, Color: opts.Color, Width: opts.Width})
	case FormatHTML:
		return render.HTML(w, res, render.HTMLOptions{HideNotes: opts.HideNotes, Standalone: opts.Standalone})
	case FormatJSON:
		if opts.HideNotes {
			res = withoutNotes(res)
		}
		var buf bytes.Buffer
		if err := render.JSON(&buf, res); err != nil {
			return err
		}
		if opts.Validate {
			if err := render.ValidateJSON(buf.Bytes()); err != nil {
				return err
			}
		}
		_, err := w.Write(buf.Bytes())
		return err
	default:
		return fmt.Errorf("unknown format %q (want text, json or html)", opts.Format)
	}
}

func withoutNotes(res fountain.Result) fountain.Result {
	kept := make([]fountain.Token, 0, len(res.Tokens))
	for _, t := range res.Tokens {
		if t.Kind != fountain.KindNote {
			kept = append(kept, t)
		}
	}
	res.Tokens = kept
	return res
}
