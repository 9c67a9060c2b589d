package testing

import (
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
)

// TraceEvent is one call of the trace function, parsed from its NOTICE.
type TraceEvent struct {
	Label    string
	Payload  string
	ReadOnly bool   // transaction_read_only at the time of the call
	TxStamp  string // transaction_timestamp(); equal for calls in one transaction
}

// NoticeCapture collects trace events from PostgreSQL NOTICE messages.
// Thread-safe for concurrent use.
type NoticeCapture struct {
	events  []TraceEvent
	raw     []string
	pattern *regexp.Regexp
	mu      sync.Mutex
}

// NewNoticeCapture creates a capture for messages matching
// [TRACE]label|payload|on-or-off|stamp
func NewNoticeCapture() *NoticeCapture {
	return &NoticeCapture{
		pattern: regexp.MustCompile(`^\[TRACE\]([^|]+)\|([^|]*)\|(on|off)\|([^|]*)$`),
	}
}

// Handler returns a function suitable for pgx's OnNotice callback.
func (nc *NoticeCapture) Handler() func(*pgconn.PgConn, *pgconn.Notice) {
	return func(_ *pgconn.PgConn, n *pgconn.Notice) {
		if n == nil {
			return
		}

		nc.mu.Lock()
		defer nc.mu.Unlock()

		nc.raw = append(nc.raw, n.Message)

		match := nc.pattern.FindStringSubmatch(n.Message)
		if match == nil {
			return
		}

		nc.events = append(nc.events, TraceEvent{
			Label:    match[1],
			Payload:  match[2],
			ReadOnly: match[3] == "on",
			TxStamp:  match[4],
		})
	}
}

// Events returns a copy of all captured trace events.
func (nc *NoticeCapture) Events() []TraceEvent {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	result := make([]TraceEvent, len(nc.events))
	copy(result, nc.events)
	return result
}

// Labels returns just the labels in order.
func (nc *NoticeCapture) Labels() []string {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	result := make([]string, len(nc.events))
	for i, e := range nc.events {
		result[i] = e.Label
	}
	return result
}

// Transactions returns the number of distinct transactions the events ran in.
func (nc *NoticeCapture) Transactions() int {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	seen := make(map[string]struct{})
	for _, e := range nc.events {
		seen[e.TxStamp] = struct{}{}
	}
	return len(seen)
}

// RawNotices returns all raw NOTICE messages received.
func (nc *NoticeCapture) RawNotices() []string {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	result := make([]string, len(nc.raw))
	copy(result, nc.raw)
	return result
}

func (nc *NoticeCapture) Reset() {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.events = nil
	nc.raw = nil
}
