package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/olimci/bootslot/pkg/device"
	"github.com/olimci/bootslot/pkg/exports/local"
	"github.com/olimci/bootslot/pkg/slot"
	"github.com/olimci/bootslot/pkg/watch"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "refresh export status as images change in the export directory",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "quiet period before a burst of changes is handled",
				Value: watch.DefaultDebounce,
			},
		},
		Action: watchAction,
	}
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	if len(cmd.Args().Slice()) > 0 {
		return fmt.Errorf("watch does not accept arguments")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withRuntime(ctx, cmd, func(rt *runtime) error {
		dir, ok := rt.engine.Exports.(*local.Dir)
		if !ok {
			return fmt.Errorf("watch needs the local export backend, have %s", rt.engine.Exports.Type())
		}

		d, err := rt.device(ctx)
		if err != nil {
			return describe(cmd, err)
		}
		if err := d.Refresh(ctx); err != nil {
			rt.logger.Warn("initial refresh incomplete", zap.Error(err))
		}
		printDevice(d)

		w, err := watch.New(dir.Root, cmd.Duration("debounce"))
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("watch %s: %w", dir.Root, err)
		}
		defer w.Stop()

		updates := d.Subscribe()
		defer d.Unsubscribe(updates)

		rt.logger.Info("watching exports", zap.String("dir", dir.Root))
		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-w.Events():
				if !ok {
					return nil
				}
				rt.logger.Debug("exports changed", zap.Strings("names", ev.Names))
				recheckExports(ctx, rt, d)
				if err := rt.flushMetrics(); err != nil {
					rt.logger.Warn("flush metrics", zap.Error(err))
				}

			case rec := <-updates:
				fmt.Printf("%s  %s export %s\n",
					dimStyle.Render(rec.UpdatedAt.Local().Format("15:04:05")),
					rec.Slot,
					strings.ToLower(string(rec.Export)),
				)

			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				rt.logger.Warn("watch error", zap.Error(err))
			}
		}
	})
}

// recheckExports refreshes export status on every classified slot. Slots
// that never classified are skipped.
func recheckExports(ctx context.Context, rt *runtime, d *device.Device) {
	for _, s := range d.Slots() {
		err := s.RefreshExportStatus(ctx)
		if err == nil || errors.Is(err, slot.ErrNotClassified) {
			continue
		}
		rt.logger.Warn("refresh export status", zap.String("slot", s.Slot()), zap.Error(err))
	}
}
