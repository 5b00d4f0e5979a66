package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetAutoFormatHeaders(true)
	return t
}

// loadAny opens a search directory, a single result file or a .dsx snapshot.
func loadAny(cmd *cobra.Command, path string) (cat *catalog.Catalog, err error) {
	if strings.HasSuffix(path, ".dsx") {
		r, openErr := snapshot.Open(path)
		if openErr != nil {
			return nil, openErr
		}
		defer multierr.AppendInvoke(&err, multierr.Close(r))
		return r.Catalog()
	}
	return catalog.LoadPath(cmd.Context(), path, catalog.Options{})
}

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <dir|file>",
		Short: "Check search data for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadAny(cmd, args[0])
			if err != nil {
				return err
			}
			violations := cat.Validate(strict)
			out := cmd.OutOrStdout()
			if len(violations) == 0 {
				st := cat.Stats()
				fmt.Fprintf(out, "ok: %d files, %s entries\n", st.Files, humanize.Comma(int64(st.Entries)))
				return nil
			}
			t := newTable(out, "File", "Entry", "Field", "Message")
			for _, v := range violations {
				t.Append([]string{v.File, v.EntryID, v.Field, v.Message})
			}
			t.Render()
			return fmt.Errorf("%d violations", len(violations))
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "also check that keys are canonically encoded and match their labels")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var section, mode string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query <dir|file|snapshot> <text>",
		Short: "Look up entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			m, err := lookup.ParseMode(mode, lookup.ModePrefix)
			if err != nil {
				return err
			}
			cat, err := loadAny(cmd, args[0])
			if err != nil {
				return err
			}
			idx, err := lookup.New(cat, lookup.Options{Fulltext: m == lookup.ModeFulltext})
			if err != nil {
				return err
			}
			defer multierr.AppendInvoke(&err, multierr.Close(idx))

			q := lookup.Query{Text: args[1], Section: section, Mode: m, Limit: limit}.Normalize(idx.DefaultSection())
			res, err := idx.Lookup(q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			t := newTable(out, "File", "ID", "Name", "Matches", "First URL")
			for _, h := range res.Hits {
				first := ""
				if len(h.Entry.Matches) > 0 {
					first = h.Entry.Matches[0].URL
				}
				t.Append([]string{h.File, h.Entry.ID, h.Entry.Name, strconv.Itoa(len(h.Entry.Matches)), first})
			}
			t.Render()
			fmt.Fprintf(out, "%d of %d entries\n", len(res.Hits), res.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "section to search (default all)")
	cmd.Flags().StringVar(&mode, "mode", "prefix", "prefix, exact, substring or fulltext")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to print, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <dir|snapshot> <out-dir>",
		Short: "Write the search data back out in the generator's layout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadAny(cmd, args[0])
			if err != nil {
				return err
			}
			if err := cat.Render(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d files to %s\n", len(cat.AllFiles()), args[1])
			return nil
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	var codecName string
	cmd := &cobra.Command{
		Use:   "snapshot <dir> <out.dsx>",
		Short: "Compile a search directory into a snapshot file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := snapshot.ParseCodec(codecName)
			if err != nil {
				return err
			}
			cat, err := catalog.LoadPath(cmd.Context(), args[0], catalog.Options{})
			if err != nil {
				return err
			}
			if dir := filepath.Dir(args[1]); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			h, err := snapshot.Write(args[1], cat, codec)
			if err != nil {
				return err
			}
			info, err := os.Stat(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s): %d files, %s entries, %s\n",
				args[1], humanize.Bytes(uint64(info.Size())), h.FileCount,
				humanize.Comma(int64(h.EntryCount)), h.Codec)
			return nil
		},
	}
	cmd.Flags().StringVar(&codecName, "codec", "zstd", "zstd, lz4 or none")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <dir|file|snapshot>",
		Short: "Summarize sections, entries and matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadAny(cmd, args[0])
			if err != nil {
				return err
			}
			st := cat.Stats()
			out := cmd.OutOrStdout()

			names := make([]string, 0, len(st.PerSection))
			for name := range st.PerSection {
				names = append(names, name)
			}
			sort.Strings(names)

			t := newTable(out, "Section", "Files", "Entries", "Matches", "Keys")
			for _, name := range names {
				s := st.PerSection[name]
				t.Append([]string{
					name,
					strconv.Itoa(s.Files),
					humanize.Comma(int64(s.Entries)),
					humanize.Comma(int64(s.Matches)),
					humanize.Comma(int64(s.DistinctKeys)),
				})
			}
			t.SetFooter([]string{
				"total",
				strconv.Itoa(st.Files),
				humanize.Comma(int64(st.Entries)),
				humanize.Comma(int64(st.Matches)),
				humanize.Comma(int64(st.DistinctKeys)),
			})
			t.Render()
			fmt.Fprintf(out, "%d external matches, %d distinct pages\n", st.External, st.DistinctPages)
			return nil
		},
	}
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <text>",
		Short: "Print the search key for a term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), searchdata.EncodeID(args[0]))
			return nil
		},
	}
}

func newDecodeCmd() *cobra.Command {
	var isID bool
	cmd := &cobra.Command{
		Use:   "decode <key>",
		Short: "Print the term a search key encodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if isID {
				k, _, ok := searchdata.SplitOrdinal(key)
				if !ok {
					return fmt.Errorf("%q has no ordinal suffix", key)
				}
				key = k
			}
			term, err := searchdata.DecodeID(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), term)
			return nil
		},
	}
	cmd.Flags().BoolVar(&isID, "id", false, "argument is an entry id with an ordinal suffix")
	return cmd
}
