package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/olimci/bootslot/pkg/device"
	"github.com/olimci/bootslot/pkg/exports"
	"github.com/olimci/bootslot/pkg/exports/local"
	"github.com/olimci/bootslot/pkg/exports/s3"
	"github.com/olimci/bootslot/pkg/history"
	"github.com/olimci/bootslot/pkg/logging"
	"github.com/olimci/bootslot/pkg/magiskboot"
	"github.com/olimci/bootslot/pkg/metrics"
	"github.com/olimci/bootslot/pkg/rootfs"
	"github.com/olimci/bootslot/pkg/shell"
	"github.com/olimci/bootslot/pkg/slot"
	storepkg "github.com/olimci/bootslot/pkg/store"
	"github.com/olimci/bootslot/pkg/store/config"
)

// runtime is everything a command needs to drive the slots: config, the
// privileged shell, the engine and its observers.
type runtime struct {
	store   storepkg.Store
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	history *history.Store
	runner  shell.Runner
	engine  *slot.Engine
}

func storeFromCommand(cmd *cli.Command) (storepkg.Store, error) {
	root := ""
	if r := cmd.Root(); r != nil {
		root = strings.TrimSpace(r.String("store"))
	}
	if root == "" {
		return storepkg.DefaultStore()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return storepkg.Store{}, fmt.Errorf("resolve store %s: %w", root, err)
	}
	return storepkg.Store{Root: abs}, nil
}

func openRuntime(ctx context.Context, cmd *cli.Command) (*runtime, error) {
	store, err := storeFromCommand(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if override := strings.TrimSpace(cmd.Root().String("log-level")); override != "" {
		level = override
	} else if isVerbose(cmd) {
		level = "debug"
	}
	logger, _, err := logging.New(logging.Config{
		Level:      level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	hist, err := history.Open(store.HistoryPath(), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	runner := shell.SuRunner{Su: cfg.Exec.Su}
	exp, err := newExportStore(ctx, cfg, runner, store.WorkPath())
	if err != nil {
		hist.Close()
		_ = logger.Sync()
		return nil, err
	}

	tool := magiskboot.New(runner, cfg.Magiskboot.Path)
	files := privilegedFiles(cfg, runner, store.WorkPath())
	engine := &slot.Engine{
		Classifier: &slot.Classifier{Tool: tool, WorkDir: store.WorkPath(), Logger: logger},
		Backups:    slot.Backups{Root: cfg.Backup.Root, FS: files},
		Exports:    exp,
		Files:      files,
		WorkDir:    store.WorkPath(),
		Logger:     logger,
	}

	logger.Debug("runtime ready",
		zap.String("store", store.Root),
		zap.String("exports", exp.Type()),
		zap.String("magiskboot", tool.Path),
	)

	return &runtime{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		history: hist,
		runner:  runner,
		engine:  engine,
	}, nil
}

func newExportStore(ctx context.Context, cfg config.Config, runner shell.Runner, tempDir string) (exports.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Export.Backend)) {
	case "", exports.BackendLocal:
		return local.New(cfg.Export.Dir, runner)
	case exports.BackendS3:
		return s3.New(ctx, s3.Config{
			Endpoint:  cfg.Export.S3.Endpoint,
			Bucket:    cfg.Export.S3.Bucket,
			Region:    cfg.Export.S3.Region,
			AccessKey: cfg.Export.S3.AccessKey,
			SecretKey: cfg.Export.S3.SecretKey,
			Prefix:    cfg.Export.S3.Prefix,
			TempDir:   tempDir,
		})
	default:
		return nil, fmt.Errorf("unknown export backend %q", cfg.Export.Backend)
	}
}

// privilegedFiles goes through su when one is configured. With no su the
// process is expected to hold root already.
func privilegedFiles(cfg config.Config, runner shell.Runner, tempDir string) rootfs.FS {
	if strings.TrimSpace(cfg.Exec.Su) == "" {
		return rootfs.Local{}
	}
	return rootfs.Shell{Runner: runner, TempDir: tempDir}
}

// device builds the slot set. Records are saved to the snapshot and
// reflected in metrics as they are published.
func (r *runtime) device(ctx context.Context) (*device.Device, error) {
	var d *device.Device
	onPublish := func(rec slot.Record) {
		r.metrics.SetRecord(rec)
		suffix := ""
		if d != nil {
			suffix = d.SlotSuffix
		}
		if err := r.store.UpdateSnapshot(rec, suffix); err != nil {
			r.logger.Warn("save slot state", zap.String("slot", rec.Slot), zap.Error(err))
		}
	}

	d, err := device.New(ctx, device.Options{
		Config: device.Config{
			ByNameDirs: r.cfg.Device.ByNameDirs,
			Slots:      r.cfg.Device.Slots,
			SlotSuffix: r.cfg.Device.SlotSuffix,
		},
		Runner:    r.runner,
		Engine:    r.engine,
		Tag:       r.cfg.Log.Tag,
		Logger:    r.logger,
		Observer:  slot.Observers(r.metrics, r.history),
		Locker:    r.store,
		OnPublish: onPublish,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", slot.ErrUnusable, err)
	}
	return d, nil
}

// Close writes the metrics textfile when one is configured and releases
// the history database.
func (r *runtime) Close() error {
	var errs []error
	if err := r.flushMetrics(); err != nil {
		errs = append(errs, err)
	}
	if err := r.history.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close history: %w", err))
	}
	_ = r.logger.Sync()
	return errors.Join(errs...)
}

func (r *runtime) flushMetrics() error {
	path := strings.TrimSpace(r.cfg.Metrics.Textfile)
	if path == "" {
		return nil
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(ctx context.Context, cmd *cli.Command, fn func(*runtime) error) (err error) {
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(rt)
}
