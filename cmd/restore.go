package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "back up a stock image matching the slot's stock hash",
		ArgsUsage: "<slot> <image|->",
		Action:    restoreAction,
	}
}

func restoreAction(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 2 {
		return fmt.Errorf("restore requires a slot and an image path (or - for stdin)")
	}

	var (
		src    io.Reader
		source = args[1]
	)
	if source == "-" {
		src = os.Stdin
	} else {
		path, err := fileutils.AbsPath(source)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		src = f
	}

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		d, err := rt.device(ctx)
		if err != nil {
			return describe(cmd, err)
		}
		s, err := d.Slot(args[0])
		if err != nil {
			return err
		}
		if err := s.Refresh(ctx); err != nil {
			return describe(cmd, err)
		}
		if err := s.RestoreFromBackup(ctx, src); err != nil {
			return describe(cmd, err)
		}

		rec := s.Record()
		path := rt.engine.Backups.Path(rec.Classification.Hash)
		fmt.Printf("backed up stock image for %s to %s\n", s.Slot(), path)
		printChangedPaths(cmd, []string{path})
		return nil
	})
}
