// Package notify holds the fan-out sinks behind conversation.Notifier.
//
// Every sink is best effort: events may be dropped, and callers never wait
// on them for longer than their context allows.
package notify
