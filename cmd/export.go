package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "copy a slot's boot image to the export location",
		ArgsUsage: "<slot>",
		Action:    exportAction,
	}
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 1 {
		return fmt.Errorf("export requires exactly one slot")
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
		if err := s.ExportImage(ctx); err != nil {
			return describe(cmd, err)
		}

		rec := s.Record()
		fmt.Printf("exported %s as %s to %s\n", s.Slot(), rec.Classification.ExportName(), rt.engine.Exports.Type())
		return nil
	})
}
