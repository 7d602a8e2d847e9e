// Package device ties the per-slot engines of an A/B device together: it
// finds each slot's boot partition, knows which slot is active, and advises
// what to do with each slot.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/olimci/bootslot/pkg/events"
	"github.com/olimci/bootslot/pkg/shell"
	"github.com/olimci/bootslot/pkg/slot"
)

const slotSuffixProp = "ro.boot.slot_suffix"

var ErrUnknownSlot = errors.New("unknown slot")

type Config struct {
	ByNameDirs []string
	Slots      []string
	// SlotSuffix overrides the active slot suffix, e.g. "_a".
	SlotSuffix string
}

type Options struct {
	Config   Config
	Runner   shell.Runner
	Engine   *slot.Engine
	Tag      string
	Logger   *zap.Logger
	Observer slot.Observer
	Locker   slot.Locker
	// OnPublish runs for every record a slot publishes, before subscribers
	// are notified.
	OnPublish func(slot.Record)
}

type Device struct {
	SlotSuffix string

	order     []string
	slots     map[string]*slot.State
	bus       *events.Broadcaster[slot.Record]
	onPublish func(slot.Record)
	logger    *zap.Logger
}

// New resolves the active slot and each slot's block device. No slot is
// classified yet.
func New(ctx context.Context, opts Options) (*Device, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Config.Slots) == 0 {
		return nil, fmt.Errorf("no slots configured")
	}

	suffix := strings.TrimSpace(opts.Config.SlotSuffix)
	if suffix == "" && opts.Runner != nil {
		var err error
		suffix, err = ReadSlotSuffix(ctx, opts.Runner)
		if err != nil {
			return nil, err
		}
	}

	d := &Device{
		SlotSuffix: suffix,
		slots:      make(map[string]*slot.State, len(opts.Config.Slots)),
		bus:        events.NewBroadcaster[slot.Record](),
		onPublish:  opts.OnPublish,
		logger:     logger,
	}

	for _, name := range opts.Config.Slots {
		image, err := ResolveBlockDevice(opts.Config.ByNameDirs, name)
		if err != nil {
			return nil, err
		}
		d.order = append(d.order, name)
		d.slots[name] = slot.New(slot.Options{
			Slot:     name,
			Image:    image,
			Engine:   opts.Engine,
			Tag:      opts.Tag,
			Logger:   logger,
			Notify:   d.publish,
			Observer: opts.Observer,
			Locker:   opts.Locker,
		})
	}

	return d, nil
}

// Open is New followed by a refresh of every slot. A device whose slots
// cannot all be classified is unusable.
func Open(ctx context.Context, opts Options) (*Device, error) {
	d, err := New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", slot.ErrUnusable, err)
	}
	if err := d.Refresh(ctx); err != nil {
		return d, fmt.Errorf("%w: %w", slot.ErrUnusable, err)
	}
	return d, nil
}

// Refresh refreshes every slot in order, continuing past failures.
func (d *Device) Refresh(ctx context.Context) error {
	var errs []error
	for _, name := range d.order {
		if err := d.slots[name].Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Slots returns the slot states in configured order.
func (d *Device) Slots() []*slot.State {
	out := make([]*slot.State, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.slots[name])
	}
	return out
}

// Slot looks a slot up by name. "a", "_a" and "boot_a" all name boot_a.
func (d *Device) Slot(name string) (*slot.State, error) {
	name = strings.TrimSpace(name)
	if s, ok := d.slots[name]; ok {
		return s, nil
	}
	for _, full := range d.order {
		if strings.HasSuffix(full, "_"+strings.TrimPrefix(name, "_")) {
			return d.slots[full], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, name)
}

// Active returns the name of the running slot, or "" if the device has no
// slot suffix.
func (d *Device) Active() string {
	if d.SlotSuffix == "" {
		return ""
	}
	for _, name := range d.order {
		if strings.HasSuffix(name, d.SlotSuffix) {
			return name
		}
	}
	return ""
}

func (d *Device) Subscribe() chan slot.Record {
	return d.bus.Subscribe()
}

func (d *Device) Unsubscribe(ch chan slot.Record) {
	d.bus.Unsubscribe(ch)
}

func (d *Device) publish(rec slot.Record) {
	if d.onPublish != nil {
		d.onPublish(rec)
	}
	d.bus.Publish(rec)
}

// ReadSlotSuffix reads ro.boot.slot_suffix. Devices without A/B slots
// report "".
func ReadSlotSuffix(ctx context.Context, runner shell.Runner) (string, error) {
	res, err := runner.Run(ctx, shell.Command{Line: shell.Join("getprop", slotSuffixProp)})
	if err != nil {
		return "", fmt.Errorf("read %s: %w", slotSuffixProp, err)
	}
	if res.Code != 0 {
		return "", fmt.Errorf("read %s: getprop exit %d", slotSuffixProp, res.Code)
	}
	line, _ := res.First()
	return strings.TrimSpace(line), nil
}

// ResolveBlockDevice returns the first <dir>/<name> that exists.
func ResolveBlockDevice(dirs []string, name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid partition name %q", name)
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("partition %s not found in %s", name, strings.Join(dirs, ", "))
}
