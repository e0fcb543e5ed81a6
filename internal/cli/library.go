/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gofountain/internal/bundle"
	"gofountain/internal/fountain"
	"gofountain/internal/library"
	applog "gofountain/internal/log"
)

var (
	showFlags     ParseOptions
	historyLimit  int
	pruneKeep     int
	searchKinds   []string
	searchChar    string
	searchScript  string
	searchLimit   int
	searchOffset  int
	historyShowID int64
	unpackForce   bool
)

// withLibrary wraps a RunX that needs the configured store.
func withLibrary(fn func(ctx context.Context, w io.Writer, st library.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		st, err := openLibrary(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		return fn(cmd.Context(), cmd.OutOrStdout(), st, args)
	}
}

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage the library of named scripts",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scripts",
	Args:  cobra.NoArgs,
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, _ []string) error {
		return RunLibraryList(ctx, w, st)
	}),
}

var librarySaveCmd = &cobra.Command{
	Use:   "save <name> <file|->",
	Short: "Store a script under name and make it active",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := openInput(cmd.InOrStdin(), args[1])
		if err != nil {
			return err
		}
		defer r.Close()
		return withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
			return RunLibrarySave(ctx, w, st, args[0], r)
		})(cmd, args)
	},
}

var libraryShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a stored script (the active one when name is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		opts := showFlags
		if opts.Format == "" {
			opts.Format = app.cfg.General.Format
		}
		return RunLibraryShow(ctx, w, st, name, opts)
	}),
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a script and its history",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		return RunLibraryDelete(ctx, w, st, args[0])
	}),
}

var libraryUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a script the active one",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		return RunLibraryUse(ctx, w, st, args[0])
	}),
}

var libraryHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "List saved revisions of a script, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		if historyShowID > 0 {
			return RunLibraryRevision(ctx, w, st, args[0], historyShowID)
		}
		return RunLibraryHistory(ctx, w, st, args[0], historyLimit)
	}),
}

var libraryPruneCmd = &cobra.Command{
	Use:   "prune <name>",
	Short: "Drop all but the newest revisions of a script",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		return RunLibraryPrune(ctx, w, st, args[0], pruneKeep)
	}),
}

var librarySearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search elements across stored scripts",
	Args:  cobra.MaximumNArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		q := library.Query{Character: searchChar, Script: searchScript, Limit: searchLimit, Offset: searchOffset}
		if len(args) == 1 {
			q.Text = args[0]
		}
		for _, k := range searchKinds {
			kind, err := fountain.ParseKind(strings.TrimSpace(k))
			if err != nil {
				return err
			}
			q.Kinds = append(q.Kinds, kind)
		}
		return RunLibrarySearch(ctx, w, st, q)
	}),
}

var libraryPackCmd = &cobra.Command{
	Use:   "pack <out.zip>",
	Short: "Write every stored script to a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		return RunLibraryPack(ctx, w, st, args[0])
	}),
}

var libraryUnpackCmd = &cobra.Command{
	Use:   "unpack <in.zip>",
	Short: "Import the scripts of a zip archive made by pack",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(ctx context.Context, w io.Writer, st library.Store, args []string) error {
		return RunLibraryUnpack(ctx, w, st, args[0], unpackForce)
	}),
}

func init() {
	sf := libraryShowCmd.Flags()
	sf.StringVarP(&showFlags.Format, "format", "f", "", "Output format: text, json, html (default from config)")
	sf.BoolVar(&showFlags.HideNotes, "hide-notes", false, "Leave notes out of the output")
	sf.BoolVar(&showFlags.Standalone, "standalone", false, "HTML: emit a complete document with styles")

	libraryHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Revisions to list")
	libraryHistoryCmd.Flags().Int64Var(&historyShowID, "show", 0, "Print the text of the revision with this id")

	libraryPruneCmd.Flags().IntVar(&pruneKeep, "keep", 10, "Revisions to keep")

	qf := librarySearchCmd.Flags()
	qf.StringSliceVarP(&searchKinds, "kind", "k", nil, "Element kinds to match, e.g. dialogue,action")
	qf.StringVarP(&searchChar, "character", "c", "", "Only lines spoken by this character")
	qf.StringVarP(&searchScript, "script", "s", "", "Only this script")
	qf.IntVar(&searchLimit, "limit", 50, "Maximum hits")
	qf.IntVar(&searchOffset, "offset", 0, "Hits to skip")

	libraryUnpackCmd.Flags().BoolVar(&unpackForce, "overwrite", false, "Replace scripts that already exist")

	libraryCmd.AddCommand(libraryListCmd, librarySaveCmd, libraryShowCmd, libraryDeleteCmd,
		libraryUseCmd, libraryHistoryCmd, libraryPruneCmd, librarySearchCmd,
		libraryPackCmd, libraryUnpackCmd)
	rootCmd.AddCommand(libraryCmd)
}

const stampLayout = "2006-01-02 15:04:05"

// RunLibraryList prints every stored script; the active one is marked with '*'.
func RunLibraryList(ctx context.Context, w io.Writer, st library.Store) error {
	list, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, dimStyle.Render("library is empty"))
		return nil
	}
	active, err := st.Active(ctx)
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		mark := " "
		if s.Name == active {
			mark = activeStyle.Render("*")
		}
		rows = append(rows, []string{mark, s.Name, s.Title, strconv.Itoa(s.Scenes), s.UpdatedAt.Local().Format(stampLayout)})
	}
	table(w, []string{" ", "NAME", "TITLE", "SCENES", "UPDATED"}, rows)
	return nil
}

// RunLibrarySave stores the text read from r under name and makes it active.
func RunLibrarySave(ctx context.Context, w io.Writer, st library.Store, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	start := time.Now()
	sc, err := st.Save(ctx, name, string(data))
	if err != nil {
		return err
	}
	if err := st.SetActive(ctx, sc.Name); err != nil {
		return err
	}
	applog.WithOperation(applog.WithComponent("library"), "save").Info("script saved",
		slog.String("script", sc.Name), slog.Int("bytes", len(data)), applog.Since(start))
	fmt.Fprintf(w, "%s %s (%s)\n", okStyle.Render("saved"), sc.Name, sc.Title)
	return nil
}

// RunLibraryShow renders a stored script. An empty name means the active script.
func RunLibraryShow(ctx context.Context, w io.Writer, st library.Store, name string, opts ParseOptions) error {
	if name == "" {
		active, err := st.Active(ctx)
		if errors.Is(err, library.ErrNotFound) {
			return errors.New("no script name given and no active script")
		}
		if err != nil {
			return err
		}
		name = active
	}
	sc, err := st.Load(ctx, name)
	if err != nil {
		return err
	}
	return writeResult(w, parseLogged(sc.Name, []byte(sc.Text)), opts)
}

// RunLibraryDelete removes a script.
func RunLibraryDelete(ctx context.Context, w io.Writer, st library.Store, name string) error {
	if err := st.Delete(ctx, name); err != nil {
		return err
	}
	applog.WithOperation(applog.WithComponent("library"), "delete").Info("script deleted", slog.String("script", name))
	fmt.Fprintf(w, "%s %s\n", okStyle.Render("deleted"), name)
	return nil
}

// RunLibraryUse sets the active script.
func RunLibraryUse(ctx context.Context, w io.Writer, st library.Store, name string) error {
	if err := st.SetActive(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(w, "active script is now %s\n", name)
	return nil
}

// RunLibraryHistory lists up to limit revisions of name.
func RunLibraryHistory(ctx context.Context, w io.Writer, st library.Store, name string, limit int) error {
	snaps, err := st.History(ctx, name, limit)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.At.Local().Format(stampLayout),
			strconv.Itoa(len(s.Text)),
			firstLine(s.Text),
		})
	}
	table(w, []string{"ID", "SAVED", "BYTES", "FIRST LINE"}, rows)
	return nil
}

// RunLibraryRevision prints the text of one revision.
func RunLibraryRevision(ctx context.Context, w io.Writer, st library.Store, name string, id int64) error {
	sn, err := st.Revision(ctx, name, id)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, sn.Text)
	return err
}

// RunLibraryPrune keeps the newest keep revisions of name.
func RunLibraryPrune(ctx context.Context, w io.Writer, st library.Store, name string, keep int) error {
	if keep < 1 {
		return fmt.Errorf("--keep must be at least 1, got %d", keep)
	}
	n, err := st.Prune(ctx, name, keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "removed %d revisions of %s\n", n, name)
	return nil
}

// RunLibrarySearch prints matching elements, one per line.
func RunLibrarySearch(ctx context.Context, w io.Writer, st library.Store, q library.Query) error {
	hits, err := st.Search(ctx, q)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no matches"))
		return nil
	}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		scene := "-"
		if h.Scene > 0 {
			scene = strconv.Itoa(h.Scene)
		}
		rows = append(rows, []string{h.Script, strconv.Itoa(h.Position), scene, h.Kind.String(), h.Character, h.Text})
	}
	table(w, []string{"SCRIPT", "POS", "SCENE", "KIND", "CHARACTER", "TEXT"}, rows)
	return nil
}

// RunLibraryPack archives the library into dest.
func RunLibraryPack(ctx context.Context, w io.Writer, st library.Store, dest string) error {
	n, err := bundle.Pack(ctx, st, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %d scripts to %s\n", okStyle.Render("packed"), n, dest)
	return nil
}

// RunLibraryUnpack imports an archive made by RunLibraryPack.
func RunLibraryUnpack(ctx context.Context, w io.Writer, st library.Store, src string, overwrite bool) error {
	res, err := bundle.Unpack(ctx, st, src, overwrite)
	if err != nil {
		return err
	}
	for _, n := range res.Imported {
		fmt.Fprintf(w, "%s %s\n", okStyle.Render("imported"), n)
	}
	for _, n := range res.Skipped {
		fmt.Fprintf(w, "%s %s (exists, use --overwrite)\n", dimStyle.Render("skipped"), n)
	}
	return nil
}

func firstLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			if len(l) > 60 {
				l = l[:57] + "..."
			}
			return l
		}
	}
	return ""
}
