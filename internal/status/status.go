// Package status publishes worker status and PID entries to the broker.
//
// Each worker instance owns two keys: status:<name> holds
// "<DD/MM/YY HH:MM:SS>: <message>" and pid:<name> holds the decimal process
// id written at startup. Instance names are the configured base name with a
// "_<n>" suffix when an instance number is given.
package status

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"folio/internal/broker"
	"folio/internal/workitem"
)

const (
	// StatusPrefix prefixes worker status keys.
	StatusPrefix = "status:"
	// PIDPrefix prefixes worker PID keys.
	PIDPrefix = "pid:"
)

// Standard messages written by the claim engine.
const (
	MessageWaiting    = "Waiting for work"
	MessageTerminated = "Terminated due to empty queue"
	MessageStopped    = "Stopped"
)

// InstanceName appends "_<n>" to base when n is positive.
func InstanceName(base string, n int) string {
	if n <= 0 {
		return base
	}
	return base + "_" + strconv.Itoa(n)
}

// SplitInstance separates an instance name into base and number. n is zero
// when the name carries no numeric suffix.
func SplitInstance(name string) (base string, n int) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return name, 0
	}
	value, err := strconv.Atoi(name[idx+1:])
	if err != nil || value <= 0 {
		return name, 0
	}
	return name[:idx], value
}

// Processing formats the message shown while an item is being processed.
func Processing(input string) string {
	return "Processing " + input
}

// Sleeping formats the empty-queue message.
func Sleeping(delay string) string {
	return "No items in queue, sleeping for " + delay
}

// Fatal formats the terminal message for an unrecoverable startup error.
func Fatal(detail string) string {
	return "Terminated with fatal error - " + detail
}

// Reporter writes one worker's status and PID entries.
type Reporter struct {
	store broker.Store
	name  string
	now   func() time.Time
}

// NewReporter returns a Reporter for the named worker instance.
func NewReporter(store broker.Store, name string) *Reporter {
	return &Reporter{store: store, name: name, now: time.Now}
}

// WithClock returns a copy of r that stamps messages with now.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	clone := *r
	clone.now = now
	return &clone
}

// Name returns the worker instance name.
func (r *Reporter) Name() string {
	return r.name
}

// Set replaces the status entry with a timestamped message.
func (r *Reporter) Set(ctx context.Context, message string) error {
	value := Format(r.now(), message)
	if err := r.store.Set(ctx, StatusPrefix+r.name, value); err != nil {
		return fmt.Errorf("set status for %s: %w", r.name, err)
	}
	return nil
}

// RegisterPID records the current process id.
func (r *Reporter) RegisterPID(ctx context.Context, pid int) error {
	if err := r.store.Set(ctx, PIDPrefix+r.name, strconv.Itoa(pid)); err != nil {
		return fmt.Errorf("register pid for %s: %w", r.name, err)
	}
	return nil
}

// Format renders a status value.
func Format(at time.Time, message string) string {
	return workitem.Stamp(at) + ": " + message
}

// Entry is a parsed status value.
type Entry struct {
	Worker  string
	At      time.Time
	Message string
	Raw     string
}

// Parse splits a status value into timestamp and message. Values that do not
// follow the format are returned with a zero time and the raw text as message.
func Parse(worker, raw string) Entry {
	entry := Entry{Worker: worker, Message: raw, Raw: raw}
	layoutLen := len(workitem.TimestampLayout)
	if len(raw) < layoutLen+2 || raw[layoutLen:layoutLen+2] != ": " {
		return entry
	}
	at, err := time.ParseInLocation(workitem.TimestampLayout, raw[:layoutLen], time.Local)
	if err != nil {
		return entry
	}
	entry.At = at
	entry.Message = raw[layoutLen+2:]
	return entry
}
