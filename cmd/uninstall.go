package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func uninstallCommand() *cli.Command {
	return &cli.Command{
		Name:   "uninstall",
		Usage:  "remove the bootslot store (backups and exports are kept)",
		Action: uninstallAction,
	}
}

func uninstallAction(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()

	if len(args) > 0 {
		return fmt.Errorf("uninstall does not accept arguments")
	}

	s, err := storeFromCommand(cmd)
	if err != nil {
		return err
	}

	if !s.IsInstalled() {
		return fmt.Errorf("bootslot is not installed")
	}

	if err := s.Uninstall(); err != nil {
		return err
	}
	printChangedPaths(cmd, []string{s.Root})

	fmt.Printf("uninstalled bootslot store from %s\n", s.Root)
	return nil
}
