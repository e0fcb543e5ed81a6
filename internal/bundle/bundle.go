/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package bundle moves whole libraries in and out of zip archives.
//
// An archive holds one scripts/<name>.fountain entry per script plus a
// bundle.manifest.txt at the root for people opening it by hand.
package bundle

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gofountain/internal/library"
	applog "gofountain/internal/log"
	"gofountain/internal/version"
)

const (
	manifestName = "bundle.manifest.txt"
	scriptsDir   = "scripts/"
	ext          = ".fountain"
)

// maxScriptSize bounds a single archive entry read on unpack.
const maxScriptSize = 32 << 20

// Pack writes every script in st to a zip archive at dest and returns how many
// scripts were written.
func Pack(ctx context.Context, st library.Store, dest string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "pack").With(slog.String("zip", dest))
	if strings.TrimSpace(dest) == "" {
		return 0, errors.New("bundle: destination is required")
	}
	list, err := st.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("bundle: ensure zip dir: %w", err)
	}
	tmp := dest + ".tmp"
	zf, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("bundle: create zip: %w", err)
	}
	defer func() { _ = os.Remove(tmp) }()

	zw := zip.NewWriter(zf)
	n, err := writeEntries(ctx, zw, st, list)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := zf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return 0, fmt.Errorf("bundle: build zip: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return 0, fmt.Errorf("bundle: %w", err)
	}
	l.Info("library packed", slog.Int("scripts", n))
	return n, nil
}

func writeEntries(ctx context.Context, zw *zip.Writer, st library.Store, list []library.Summary) (int, error) {
	var names strings.Builder
	for _, s := range list {
		fmt.Fprintf(&names, "  %s (%s)\n", s.Name, s.Title)
	}
	manifest := fmt.Sprintf("gofountain library bundle\nCreated: %s\nBy: %s\nScripts: %d\n\n%s",
		time.Now().Format(time.RFC3339), version.String(), len(list), names.String())
	w, err := zw.Create(manifestName)
	if err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, manifest); err != nil {
		return 0, err
	}

	n := 0
	for _, s := range list {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		sc, err := st.Load(ctx, s.Name)
		if err != nil {
			return n, err
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     scriptsDir + sc.Name + ext,
			Method:   zip.Deflate,
			Modified: sc.UpdatedAt,
		})
		if err != nil {
			return n, err
		}
		if _, err := io.WriteString(fw, sc.Text); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Result reports what Unpack did.
type Result struct {
	Imported []string
	Skipped  []string // already in the library and overwrite was false
}

// Unpack saves every scripts/*.fountain entry of the archive at src into st.
// Existing scripts are skipped unless overwrite is set.
func Unpack(ctx context.Context, st library.Store, src string, overwrite bool) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "unpack").With(slog.String("zip", src))
	r, err := zip.OpenReader(src)
	if err != nil {
		return Result{}, fmt.Errorf("bundle: open: %w", err)
	}
	defer func() { _ = r.Close() }()

	existing := map[string]bool{}
	list, err := st.List(ctx)
	if err != nil {
		return Result{}, err
	}
	for _, s := range list {
		existing[s.Name] = true
	}

	var res Result
	for _, f := range r.File {
		name, ok := scriptName(f.Name)
		if !ok || f.FileInfo().IsDir() {
			continue
		}
		if existing[name] && !overwrite {
			l.Warn("skip existing script", slog.String("script", name))
			res.Skipped = append(res.Skipped, name)
			continue
		}
		text, err := readEntry(f)
		if err != nil {
			return res, fmt.Errorf("bundle: %s: %w", f.Name, err)
		}
		if _, err := st.Save(ctx, name, text); err != nil {
			return res, fmt.Errorf("bundle: %s: %w", f.Name, err)
		}
		res.Imported = append(res.Imported, name)
	}
	l.Info("library unpacked", slog.Int("imported", len(res.Imported)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// scriptName maps "scripts/<name>.fountain" to name. Nested paths are rejected.
func scriptName(entry string) (string, bool) {
	if !strings.HasPrefix(entry, scriptsDir) || !strings.HasSuffix(entry, ext) {
		return "", false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(entry, scriptsDir), ext)
	if base == "" || path.Base(base) != base {
		return "", false
	}
	return base, true
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxScriptSize+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxScriptSize {
		return "", fmt.Errorf("larger than %d bytes", maxScriptSize)
	}
	return string(b), nil
}
