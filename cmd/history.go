package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show recent slot operations",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "number of operations to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "slot",
				Usage: "only show operations on this slot",
			},
		},
		Action: historyAction,
	}
}

func historyAction(ctx context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("history does not accept arguments")
	}

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		entries, err := rt.history.Recent(int(cmd.Int("limit")), cmd.String("slot"))
		if err != nil {
			return err
		}
		fmt.Println(renderHistory(entries))
		return nil
	})
}
