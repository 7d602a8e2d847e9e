package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/slot"
)

func backupsCommand() *cli.Command {
	return &cli.Command{
		Name:   "backups",
		Usage:  "list and verify stock image backups",
		Action: backupsAction,
	}
}

func backupsAction(ctx context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("backups does not accept arguments")
	}

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		hashes, err := rt.engine.Backups.List(ctx)
		if err != nil {
			return err
		}
		if len(hashes) == 0 {
			fmt.Println(dimStyle.Render("(no backups in " + rt.cfg.Backup.Root + ")"))
			return nil
		}
		for _, h := range hashes {
			status, err := rt.engine.VerifyBackup(ctx, h)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", renderPresence(fmt.Sprintf("%-7s", status), status == slot.BackupFound, status == slot.BackupInvalid), h)
			if isVerbose(cmd) {
				fmt.Printf("         %s\n", rt.engine.Backups.Path(h))
			}
		}
		return nil
	})
}

func verifyBackupCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify-backup",
		Usage:     "check the backup for a stock image hash",
		ArgsUsage: "<sha1>",
		Action:    verifyBackupAction,
	}
}

func verifyBackupAction(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 1 {
		return fmt.Errorf("verify-backup requires exactly one hash")
	}
	hash, err := digest.Parse(args[0])
	if err != nil {
		return err
	}

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		status, err := rt.engine.VerifyBackup(ctx, hash)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", renderPresence(string(status), status == slot.BackupFound, status == slot.BackupInvalid), rt.engine.Backups.Path(hash))
		if status != slot.BackupFound {
			return fmt.Errorf("backup for %s is %s", hash.Short(), status)
		}
		return nil
	})
}
