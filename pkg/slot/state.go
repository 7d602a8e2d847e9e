package slot

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

const DefaultTag = "bootslot/slot"

// Operation names passed to observers.
const (
	OpRefresh       = "refresh"
	OpExport        = "export"
	OpRestore       = "restore"
	OpRefreshExport = "refresh_export"
)

// Operation describes one completed public operation on a slot.
type Operation struct {
	Slot     string
	Name     string
	Hash     digest.Digest
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Observer receives every completed operation, successful or not.
type Observer interface {
	Observe(Operation)
}

type ObserverFunc func(Operation)

func (f ObserverFunc) Observe(op Operation) { f(op) }

// Observers fans an operation out to each non-nil observer.
func Observers(obs ...Observer) Observer {
	return ObserverFunc(func(op Operation) {
		for _, o := range obs {
			if o != nil {
				o.Observe(op)
			}
		}
	})
}

// Locker takes a lock on a slot shared with other processes.
type Locker interface {
	Lock(slot string) (unlock func() error, err error)
}

type Options struct {
	Slot string
	// Image is the live boot partition of the slot.
	Image  string
	Engine *Engine
	// Tag is attached to every log entry as the component.
	Tag    string
	Logger *zap.Logger
	// Notify is called once after each successful public operation.
	Notify   func(Record)
	Observer Observer
	Locker   Locker
}

// State owns the record of one slot and serializes the operations that
// mutate it.
type State struct {
	slot     string
	image    string
	engine   *Engine
	logger   *zap.Logger
	notify   func(Record)
	observer Observer
	locker   Locker

	// op is held for the whole of a public operation.
	op sync.Mutex

	mu  sync.RWMutex
	rec Record
}

func New(opts Options) *State {
	tag := opts.Tag
	if tag == "" {
		tag = DefaultTag
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &State{
		slot:     opts.Slot,
		image:    opts.Image,
		engine:   opts.Engine,
		logger:   logger.With(zap.String("component", tag), zap.String("slot", opts.Slot)),
		notify:   opts.Notify,
		observer: opts.Observer,
		locker:   opts.Locker,
		rec:      Record{Slot: opts.Slot, Phase: PhaseUninitialized},
	}
}

func (s *State) Slot() string  { return s.slot }
func (s *State) Image() string { return s.image }

// Record returns a copy of the current record.
func (s *State) Record() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.clone()
}

// Refresh classifies the live image, then verifies its backup and export.
// The record is only updated if all three steps succeed; on failure the
// previous values stay. Only a classify failure moves the phase to
// ClassifyFailed; a failed verification keeps the prior phase.
func (s *State) Refresh(ctx context.Context) error {
	return s.run(ctx, OpRefresh, PhaseClassifying, func(ctx context.Context, rec *Record) error {
		c, err := s.engine.Classify(ctx, s.image)
		if err != nil {
			rec.Phase = PhaseClassifyFailed
			return err
		}
		backup, err := s.engine.VerifyBackup(ctx, c.Hash)
		if err != nil {
			return err
		}
		export, err := s.engine.VerifyExport(ctx, c)
		if err != nil {
			return err
		}

		rec.Classification = &c
		rec.Backup = backup
		rec.Export = export
		return nil
	})
}

// ExportImage writes the live image to the export store. On success the
// export status is set to Found without re-verifying.
func (s *State) ExportImage(ctx context.Context) error {
	return s.run(ctx, OpExport, PhaseExporting, func(ctx context.Context, rec *Record) error {
		c, err := classified(rec)
		if err != nil {
			return err
		}
		entry, err := s.engine.ExportImage(ctx, s.image, c)
		if err != nil {
			return err
		}
		s.logger.Info("exported image", zap.String("hash", c.Hash.String()), zap.String("export", entry.Name))
		rec.Export = ExportFound
		return nil
	})
}

// RestoreFromBackup stores the image read from r as the backup for the
// slot's current hash. Only the backup status changes, and only on success.
func (s *State) RestoreFromBackup(ctx context.Context, r io.Reader) error {
	return s.run(ctx, OpRestore, PhaseRestoring, func(ctx context.Context, rec *Record) error {
		c, err := classified(rec)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrSourceUnavailable
		}

		candidate, err := fileutils.WriteTemp(s.engine.WorkDir, "restore-*.img", r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		defer os.Remove(candidate)

		if err := s.engine.CreateBackup(ctx, candidate, c.Hash); err != nil {
			return err
		}
		rec.Backup = BackupFound
		return nil
	})
}

// RefreshExportStatus re-verifies only the export of the current
// classification.
func (s *State) RefreshExportStatus(ctx context.Context) error {
	return s.run(ctx, OpRefreshExport, "", func(ctx context.Context, rec *Record) error {
		c, err := classified(rec)
		if err != nil {
			return err
		}
		export, err := s.engine.VerifyExport(ctx, c)
		if err != nil {
			return err
		}
		rec.Export = export
		return nil
	})
}

func classified(rec *Record) (Classification, error) {
	if rec.Classification == nil {
		return Classification{}, ErrNotClassified
	}
	return *rec.Classification, nil
}

// run executes fn against a working copy of the record. The copy replaces
// the record only if fn succeeds; fn may set Phase to ClassifyFailed on
// failure. Refreshing is true from before fn until after it returns.
func (s *State) run(ctx context.Context, name string, phase Phase, fn func(context.Context, *Record) error) error {
	s.op.Lock()
	defer s.op.Unlock()

	started := time.Now()
	work, prior := s.begin(phase)
	finished := false
	defer func() {
		if !finished {
			s.abort(prior, nil)
		}
	}()

	err := s.locked(ctx, fn, &work)

	var rec Record
	if err != nil {
		next := prior
		switch {
		case work.Phase == PhaseClassifyFailed:
			next = PhaseClassifyFailed
		case work.Classification != nil:
			next = PhaseReady
		}
		rec = s.abort(next, err)
	} else {
		rec = s.commit(work)
	}
	finished = true

	var hash digest.Digest
	if work.Classification != nil {
		hash = work.Classification.Hash
	}
	s.observe(name, hash, started, err)

	if err != nil {
		s.logger.Warn(name+" failed",
			zap.String("op", name),
			zap.String("hash", hash.String()),
			zap.String("message", Message(err)),
			zap.Error(err))
		return err
	}

	s.logger.Debug(name+" done", zap.String("op", name), zap.Duration("took", time.Since(started)))
	if s.notify != nil {
		s.notify(rec)
	}
	return nil
}

func (s *State) locked(ctx context.Context, fn func(context.Context, *Record) error, work *Record) error {
	if s.locker != nil {
		unlock, err := s.locker.Lock(s.slot)
		if err != nil {
			return fmt.Errorf("lock slot %s: %w", s.slot, err)
		}
		defer func() {
			if err := unlock(); err != nil {
				s.logger.Warn("unlock slot", zap.Error(err))
			}
		}()
	}
	return fn(ctx, work)
}

// begin marks the record as refreshing and returns a working copy along
// with the phase it had before.
func (s *State) begin(phase Phase) (Record, Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.rec.Phase
	if phase != "" {
		s.rec.Phase = phase
	}
	s.rec.Refreshing = true
	return s.rec.clone(), prior
}

func (s *State) commit(work Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = work.clone()
	s.rec.Phase = PhaseReady
	s.rec.Refreshing = false
	s.rec.LastError = ""
	s.rec.UpdatedAt = time.Now()
	return s.rec.clone()
}

// abort leaves the record's fields as they were and records err.
func (s *State) abort(phase Phase, err error) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Phase = phase
	s.rec.Refreshing = false
	if err != nil {
		s.rec.LastError = Message(err)
	}
	return s.rec.clone()
}

func (s *State) observe(name string, hash digest.Digest, started time.Time, err error) {
	if s.observer == nil {
		return
	}
	s.observer.Observe(Operation{
		Slot:     s.slot,
		Name:     name,
		Hash:     hash,
		Started:  started,
		Duration: time.Since(started),
		Err:      err,
	})
}
