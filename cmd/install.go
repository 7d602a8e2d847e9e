package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func installCommand() *cli.Command {
	return &cli.Command{
		Name:   "install",
		Usage:  "initialize the bootslot store",
		Action: installAction,
	}
}

func installAction(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()

	if len(args) > 0 {
		return fmt.Errorf("install does not accept arguments")
	}

	store, err := storeFromCommand(cmd)
	if err != nil {
		return err
	}

	if store.IsInstalled() {
		return fmt.Errorf("bootslot is already installed in %s", store.Root)
	}

	if err := store.Install(); err != nil {
		return err
	}

	fmt.Printf("initialized bootslot store in %s\n", store.Root)
	printChangedPaths(cmd, []string{store.ConfigPath(), store.WorkPath(), store.LocksPath()})
	return nil
}
