package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

func tidyCommand() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "remove scratch files left behind by interrupted runs",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "only remove entries untouched for this long",
				Value: time.Hour,
			},
		},
		Action: tidyAction,
	}
}

func tidyAction(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) > 0 {
		return fmt.Errorf("tidy does not accept arguments")
	}

	store, err := storeFromCommand(cmd)
	if err != nil {
		return err
	}
	if !store.IsInstalled() {
		return fmt.Errorf("bootslot is not installed")
	}

	res, err := store.Tidy(cmd.Duration("older-than"))
	if err != nil {
		return err
	}

	fmt.Printf("tidied work directory (%d entr(ies) removed)\n", res.RemovedCount)
	printChangedPaths(cmd, res.ChangedPaths)
	return nil
}
