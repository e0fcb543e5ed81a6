/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gofountain/internal/fountain"
	"gofountain/internal/log"
	"gofountain/internal/render"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Output formats understood by Batch.
const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
	FormatJSON = "json"
)

// BatchOptions controls batch export of many scripts.
//
// Each input <dir>/<name>.fountain produces <outDir>/<name>.<format> for every
// requested format. Two inputs with the same base name are rejected before any
// file is written.
type BatchOptions struct {
	Preset    PresetName
	Formats   []string // pdf, html, json; empty means preset defaults
	Jobs      int      // concurrent scripts; zero means GOMAXPROCS
	PDF       PDFOptions
	HideNotes bool
}

// BatchResult describes the outputs written for one input file.
type BatchResult struct {
	Input   string
	Title   string
	Outputs []string
}

// Batch parses every file and writes the requested formats into outDir.
// The first failure cancels the remaining work. Results are in input order.
func Batch(ctx context.Context, files []string, outDir string, opt BatchOptions) ([]BatchResult, error) {
	formats, err := resolveFormats(opt)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	if err := checkNames(files); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	opt.PDF.HideNotes = opt.PDF.HideNotes || opt.HideNotes

	jobs := opt.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	l := log.WithComponent("export")
	start := time.Now()

	results := make([]BatchResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, in := range files {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := exportOne(in, outDir, formats, opt)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			results[i] = r
			l.Debug("exported", "input", in, "outputs", len(r.Outputs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.Error("batch export failed", "err", err)
		return nil, err
	}
	l.Info("batch export", "files", len(files), "formats", strings.Join(formats, ","), log.Since(start))
	return results, nil
}

func exportOne(in, outDir string, formats []string, opt BatchOptions) (BatchResult, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return BatchResult{}, err
	}
	res := fountain.ParseBytes(data)
	r := BatchResult{Input: in, Title: res.Title}
	base := baseName(in)
	for _, f := range formats {
		out := filepath.Join(outDir, base+"."+f)
		switch f {
		case FormatPDF:
			err = PDF(res, out, opt.PDF)
		case FormatHTML:
			err = writeFile(out, func(w *os.File) error {
				return render.HTML(w, res, render.HTMLOptions{HideNotes: opt.HideNotes, Standalone: true})
			})
		case FormatJSON:
			err = writeFile(out, func(w *os.File) error { return render.JSON(w, res) })
		}
		if err != nil {
			return BatchResult{}, fmt.Errorf("%s: %w", f, err)
		}
		r.Outputs = append(r.Outputs, out)
	}
	return r, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func resolveFormats(opt BatchOptions) ([]string, error) {
	src := opt.Formats
	if len(src) == 0 {
		src = presetDefaultFormats(opt.Preset)
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(src))
	for _, f := range src {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FormatPDF, FormatHTML, FormatJSON:
		default:
			return nil, fmt.Errorf("unknown format: %s", f)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func checkNames(files []string) error {
	owner := map[string]string{}
	for _, f := range files {
		b := baseName(f)
		if prev, ok := owner[b]; ok {
			return fmt.Errorf("%s and %s both export as %q", prev, f, b)
		}
		owner[b] = f
	}
	return nil
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatHTML, FormatJSON}
	case PresetPrint:
		return []string{FormatPDF}
	default:
		return []string{FormatPDF}
	}
}
