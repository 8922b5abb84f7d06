package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/dirtools/internal"
	"github.com/starford/dirtools/internal/apperr"
	"github.com/starford/dirtools/internal/archive"
	"github.com/starford/dirtools/internal/models"
	"github.com/starford/dirtools/internal/snapshot"
	"github.com/starford/dirtools/internal/treeservice"
)

var stdout io.Writer = os.Stdout

func commands() []*cli.Command {
	patternFlag := &cli.StringFlag{
		Name:    "pattern",
		Aliases: []string{"p"},
		Usage:   "Glob matched against basenames",
		Value:   "*",
	}

	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API with live snapshot events",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Run the MCP server on stdio",
			Action: serveMCP,
		},
		{
			Name:  "files",
			Usage: "List non-excluded files",
			Flags: []cli.Flag{patternFlag},
			Action: withTree(func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error {
				files, err := svc.Files(ctx, cmd.String("pattern"))
				if err != nil {
					return err
				}
				printLines(stdout, files)
				return nil
			}),
		},
		{
			Name:  "subdirs",
			Usage: "List non-excluded directories",
			Flags: []cli.Flag{patternFlag},
			Action: withTree(func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error {
				dirs, err := svc.Subdirs(ctx, cmd.String("pattern"))
				if err != nil {
					return err
				}
				printLines(stdout, dirs)
				return nil
			}),
		},
		{
			Name:      "projects",
			Usage:     "List directories holding a marker file",
			ArgsUsage: "<marker>",
			Action: withTree(func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error {
				projects, err := svc.Projects(ctx, cmd.Args().First())
				if err != nil {
					return err
				}
				printLines(stdout, projects)
				return nil
			}),
		},
		{
			Name:  "hash",
			Usage: "Print the aggregate digest of the tree",
			Action: withTree(func(ctx context.Context, _ *cli.Command, svc *treeservice.Service) error {
				res, err := svc.Hash(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%s:%s  %s\n", res.Algorithm, res.Digest, res.Root)
				return nil
			}),
		},
		{
			Name:      "excluded",
			Usage:     "Report whether a relative path is excluded",
			ArgsUsage: "<path>",
			Action: withTree(func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error {
				if cmd.NArg() != 1 {
					return fmt.Errorf("excluded: expected one path: %w", apperr.ErrInvalidArgument)
				}
				excluded, err := svc.Excluded(ctx, cmd.Args().First())
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout, strconv.FormatBool(excluded))
				return nil
			}),
		},
		{
			Name:  "snapshot",
			Usage: "Take and record a snapshot, then print the changes since the previous one",
			Action: withIndex(func(ctx context.Context, _ *cli.Command, svc *treeservice.Service) error {
				res, err := svc.TakeSnapshot(ctx)
				if err != nil {
					return err
				}
				printSnapshot(stdout, res)
				return nil
			}),
		},
		{
			Name:  "snapshots",
			Usage: "List recorded snapshots of the tree",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of snapshots", Value: 20},
			},
			Action: withIndex(func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error {
				items, err := svc.ListSnapshots(ctx, int(cmd.Int("limit")))
				if err != nil {
					return err
				}
				printSnapshots(stdout, items)
				return nil
			}),
		},
		{
			Name:      "diff",
			Usage:     "Diff a recorded snapshot against a newer one or the live tree",
			ArgsUsage: "<older-id> [newer-id]",
			Action: withIndex(func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error {
				if cmd.NArg() < 1 || cmd.NArg() > 2 {
					return fmt.Errorf("diff: expected <older-id> [newer-id]: %w", apperr.ErrInvalidArgument)
				}
				older, err := parseID(cmd.Args().Get(0))
				if err != nil {
					return err
				}
				var res *models.DiffResult
				if cmd.NArg() == 2 {
					newer, perr := parseID(cmd.Args().Get(1))
					if perr != nil {
						return perr
					}
					res, err = svc.Diff(ctx, newer, older)
				} else {
					res, err = svc.DiffCurrent(ctx, older)
				}
				if err != nil {
					return err
				}
				printDiff(stdout, res.Diff)
				return nil
			}),
		},
		{
			Name:  "compress",
			Usage: "Write a gzip tar archive of the non-excluded tree",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Archive path (default: archive.dir)"},
			},
			Action: withTree(func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error {
				out, err := svc.Compress(ctx, cmd.String("out"))
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout, out)
				return nil
			}),
		},
		{
			Name:      "extract",
			Usage:     "Extract an archive written by compress into an existing directory",
			ArgsUsage: "<archive> <dest>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if cmd.NArg() != 2 {
					return fmt.Errorf("extract: expected <archive> <dest>: %w", apperr.ErrInvalidArgument)
				}
				return archive.ExtractFile(cmd.Args().Get(0), cmd.Args().Get(1))
			},
		},
	}
}

type serviceAction func(ctx context.Context, cmd *cli.Command, svc *treeservice.Service) error

// withTree runs fn against a tree service without a snapshot index.
func withTree(fn serviceAction) cli.ActionFunc {
	return withServices(false, fn)
}

// withIndex runs fn against a tree service backed by the snapshot index.
func withIndex(fn serviceAction) cli.ActionFunc {
	return withServices(true, fn)
}

func withServices(index bool, fn serviceAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := internal.NewLogger(cfg, os.Stderr)
		slog.SetDefault(logger)

		var services *internal.Services
		if index {
			services, err = internal.Open(cfg, logger)
		} else {
			services, err = internal.OpenTree(cfg, logger)
		}
		if err != nil {
			return err
		}
		defer services.Close()
		return fn(ctx, cmd, services.Tree)
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid snapshot id %q: %w", raw, apperr.ErrInvalidArgument)
	}
	return id, nil
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func printSnapshot(w io.Writer, res *models.SnapshotResult) {
	fmt.Fprintf(w, "snapshot %d  %s:%s  %d files\n",
		res.Snapshot.ID, res.Snapshot.Algorithm, res.Snapshot.TreeDigest, res.Snapshot.FileCount)
	if res.PreviousID == 0 {
		fmt.Fprintln(w, "no previous snapshot")
		return
	}
	fmt.Fprintf(w, "changes since snapshot %d:\n", res.PreviousID)
	printDiff(w, res.Diff)
}

func printSnapshots(w io.Writer, items []models.SnapshotInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTAKEN AT\tFILES\tDIGEST")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s:%s\n",
			it.ID, it.TakenAt.Local().Format(time.DateTime), it.FileCount, it.Algorithm, shortDigest(it.TreeDigest))
	}
	_ = tw.Flush()
}

// printDiff writes one line per change: + created, - deleted, ~ updated and
// -/ for a deleted directory.
func printDiff(w io.Writer, d snapshot.Diff) {
	if d.Empty() {
		fmt.Fprintln(w, "no changes")
		return
	}
	for _, p := range d.Created {
		fmt.Fprintf(w, "+ %s\n", p)
	}
	for _, p := range d.Deleted {
		fmt.Fprintf(w, "- %s\n", p)
	}
	for _, p := range d.Updated {
		fmt.Fprintf(w, "~ %s\n", p)
	}
	for _, p := range d.DeletedDirs {
		fmt.Fprintf(w, "-/ %s\n", p)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
