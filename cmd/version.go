package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/olimci/bootslot/pkg/version"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "show version",
		Action:  versionAction,
	}
}

func versionAction(_ context.Context, cmd *cli.Command) error {
	fmt.Printf("bootslot version %s\n", version.Version)
	return nil
}
