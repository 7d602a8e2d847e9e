package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/olimci/bootslot/pkg/slot"
	storepkg "github.com/olimci/bootslot/pkg/store"
	"github.com/olimci/bootslot/pkg/store/snapshot"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "classify every slot and show what to do next",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "cached",
				Usage: "show the last saved state without touching the device",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print slot records as JSON",
			},
		},
		Action: statusAction,
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("status does not accept arguments")
	}
	if cmd.Bool("cached") {
		return cachedStatus(cmd)
	}

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		d, err := rt.device(ctx)
		if err != nil {
			return describe(cmd, err)
		}
		refreshErr := d.Refresh(ctx)

		if cmd.Bool("json") {
			views := make([]statusView, 0, len(d.Slots()))
			for _, s := range d.Slots() {
				views = append(views, statusView{
					Record: s.Record(),
					Active: s.Slot() == d.Active(),
					Next:   d.Advise(s.Slot()),
				})
			}
			if err := printJSON(views); err != nil {
				return err
			}
		} else {
			printDevice(d)
		}

		if refreshErr != nil {
			return describe(cmd, fmt.Errorf("%w: %w", slot.ErrUnusable, refreshErr))
		}
		return nil
	})
}

func cachedStatus(cmd *cli.Command) error {
	store, err := storeFromCommand(cmd)
	if err != nil {
		return err
	}
	snap, err := store.LoadSnapshot()
	if err != nil {
		if errors.Is(err, storepkg.ErrNoSnapshot) {
			return fmt.Errorf("no saved state in %s; run bootslot status first", store.Root)
		}
		return err
	}

	if cmd.Bool("json") {
		return printJSON(cachedViews(snap))
	}

	fmt.Println(dimStyle.Render("saved " + snap.SavedAt.Local().Format("2006-01-02 15:04:05")))
	for _, v := range cachedViews(snap) {
		fmt.Println()
		fmt.Println(renderRecord(v.Record, v.Active, ""))
	}
	return nil
}

func cachedViews(snap snapshot.Snapshot) []statusView {
	names := make([]string, 0, len(snap.Slots))
	for name := range snap.Slots {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]statusView, 0, len(names))
	for _, name := range names {
		views = append(views, statusView{
			Record: snap.Slots[name],
			Active: snap.SlotSuffix != "" && strings.HasSuffix(name, snap.SlotSuffix),
		})
	}
	return views
}
