package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Usage:     "reclassify one slot, or every slot",
		ArgsUsage: "[slot]",
		Action:    refreshAction,
	}
}

func refreshAction(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) > 1 {
		return fmt.Errorf("refresh accepts at most one slot")
	}

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		d, err := rt.device(ctx)
		if err != nil {
			return describe(cmd, err)
		}

		if len(args) == 0 {
			err = d.Refresh(ctx)
			printDevice(d)
			return describe(cmd, err)
		}

		s, err := d.Slot(args[0])
		if err != nil {
			return err
		}
		err = s.Refresh(ctx)
		fmt.Println(renderRecord(s.Record(), s.Slot() == d.Active(), d.Advise(s.Slot())))
		return describe(cmd, err)
	})
}
