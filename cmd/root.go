package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/olimci/bootslot/pkg/version"
)

// Commands:
// install
//   creates the store with a default config
//
// status [--cached] [--json]
//   classifies every slot and shows what to do next
//
// refresh [slot]
//   reclassifies one slot, or all of them
//
// export <slot>
//   copies a slot's image to the export location
//
// restore <slot> <image|->
//   backs up a stock image matching the slot's stock hash
//
// backups, verify-backup <hash>, inspect <image>
//   read-only checks against backups and loose images
//
// watch
//   refreshes export status as images appear in the export directory
//
// history, tidy, uninstall, version

func Execute(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:    "bootslot",
		Usage:   "keep Magisk boot slots, stock backups and exported images in step",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Usage:   "state directory (default $BOOTSLOT_STORE_DIR or /data/adb/bootslot)",
				Sources: cli.EnvVars("BOOTSLOT_STORE_DIR"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "show full errors and changed paths",
			},
		},
		Commands: []*cli.Command{
			installCommand(),
			statusCommand(),
			refreshCommand(),
			exportCommand(),
			restoreCommand(),
			backupsCommand(),
			verifyBackupCommand(),
			inspectCommand(),
			watchCommand(),
			historyCommand(),
			tidyCommand(),
			uninstallCommand(),
			versionCommand(),
		},
	}

	return app.Run(ctx, args)
}
