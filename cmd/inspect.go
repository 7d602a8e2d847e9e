package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "classify a boot image file",
		ArgsUsage: "<image>",
		Action:    inspectAction,
	}
}

func inspectAction(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 1 {
		return fmt.Errorf("inspect requires exactly one image path")
	}
	path, err := fileutils.AbsPath(args[0])
	if err != nil {
		return err
	}

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		c, err := rt.engine.Classify(ctx, path)
		if err != nil {
			return describe(cmd, err)
		}
		status, err := rt.engine.VerifyBackup(ctx, c.Hash)
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render(path))
		fmt.Println(renderField("image", string(c.Status)))
		fmt.Println(renderField("sha1", c.Hash.String()))
		fmt.Println(renderField("name", c.ExportName()))
		fmt.Println(renderField("backup", string(status)))
		return nil
	})
}
