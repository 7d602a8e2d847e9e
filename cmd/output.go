package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/olimci/bootslot/pkg/device"
	"github.com/olimci/bootslot/pkg/history"
	"github.com/olimci/bootslot/pkg/slot"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true).Width(8)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func isVerbose(cmd *cli.Command) bool {
	if cmd == nil {
		return false
	}
	if cmd.Bool("verbose") {
		return true
	}
	root := cmd.Root()
	return root != nil && root.Bool("verbose")
}

func printChangedPaths(cmd *cli.Command, paths []string) {
	if !isVerbose(cmd) || len(paths) == 0 {
		return
	}
	fmt.Println("changed paths:")
	for _, path := range paths {
		fmt.Printf("  %s\n", path)
	}
}

// opError shows the short message for a slot failure and keeps the
// underlying chain for errors.Is.
type opError struct {
	msg string
	err error
}

func (e *opError) Error() string { return e.msg }
func (e *opError) Unwrap() error { return e.err }

// describe turns err into what the user sees: the slot message alone, or
// the whole chain with --verbose.
func describe(cmd *cli.Command, err error) error {
	if err == nil || isVerbose(cmd) {
		return err
	}
	if errors.Is(err, slot.ErrUnusable) {
		return &opError{msg: "this device cannot be managed: " + rootCause(err), err: err}
	}
	if slot.Reason(err) == "error" {
		return err
	}
	return &opError{msg: slot.Message(err), err: err}
}

func rootCause(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func slotTitle(rec slot.Record, active bool) string {
	title := headerStyle.Render(rec.Slot)
	if active {
		title += " " + goodStyle.Render("(active)")
	}
	return title
}

func renderField(label, value string) string {
	return "  " + labelStyle.Render(label) + value
}

func renderRecord(rec slot.Record, active bool, advice device.Action) string {
	lines := []string{slotTitle(rec, active)}

	if rec.Refreshing {
		lines = append(lines, renderField("phase", warnStyle.Render(string(rec.Phase))))
	}
	if rec.Classification == nil {
		lines = append(lines, renderField("image", dimStyle.Render("not classified")))
	} else {
		status := goodStyle.Render(string(rec.Classification.Status))
		if rec.Classification.Status == slot.Patched {
			status = warnStyle.Render(string(rec.Classification.Status))
		}
		lines = append(lines,
			renderField("image", status),
			renderField("sha1", rec.Classification.Hash.Short()),
			renderField("backup", renderPresence(string(rec.Backup), rec.Backup == slot.BackupFound, rec.Backup == slot.BackupInvalid)),
			renderField("export", renderPresence(string(rec.Export), rec.Export == slot.ExportFound, rec.Export == slot.ExportInvalid)),
		)
	}
	if rec.LastError != "" {
		lines = append(lines, renderField("error", badStyle.Render(rec.LastError)))
	}
	if advice != "" && advice != device.ActionNone {
		lines = append(lines, renderField("next", headerStyle.Render(adviceText(advice))))
	}
	return strings.Join(lines, "\n")
}

func renderPresence(label string, ok, broken bool) string {
	switch {
	case ok:
		return goodStyle.Render(label)
	case broken:
		return badStyle.Render(label)
	default:
		return dimStyle.Render(label)
	}
}

func adviceText(a device.Action) string {
	switch a {
	case device.ActionRestore:
		return "restore a stock image into the backup (bootslot restore)"
	case device.ActionExport:
		return "export this slot (bootslot export)"
	}
	return string(a)
}

func printDevice(d *device.Device) {
	for i, s := range d.Slots() {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(renderRecord(s.Record(), s.Slot() == d.Active(), d.Advise(s.Slot())))
	}
}

// statusView is the JSON form of one slot.
type statusView struct {
	slot.Record
	Active bool          `json:"active"`
	Next   device.Action `json:"next,omitempty"`
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return dimStyle.Render("(no operations recorded)")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		outcome := goodStyle.Render(e.Outcome)
		if e.Outcome != "ok" {
			outcome = badStyle.Render(e.Outcome)
		}
		hash := e.Hash
		if len(hash) > 8 {
			hash = hash[:8]
		}
		line := fmt.Sprintf("%s  %-7s %-15s %-8s %s %s",
			dimStyle.Render(e.Started.Local().Format(time.DateTime)),
			e.Slot, e.Op, hash, outcome,
			dimStyle.Render(e.Duration.Round(time.Millisecond).String()),
		)
		if e.Outcome != "ok" && e.Message != "" {
			line += "\n    " + e.Message
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
