package testing

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoticeCapture_ParsesTraceFormat(t *testing.T) {
	testCases := []struct {
		message  string
		expected *TraceEvent
	}{
		{
			message:  "[TRACE]insert|{\"id\":1}|off|2026-10-19 10:00:00.123456+00",
			expected: &TraceEvent{Label: "insert", Payload: `{"id":1}`, TxStamp: "2026-10-19 10:00:00.123456+00"},
		},
		{
			message:  "[TRACE]load||on|2026-10-19 10:00:01+00",
			expected: &TraceEvent{Label: "load", ReadOnly: true, TxStamp: "2026-10-19 10:00:01+00"},
		},
		{message: "INFO: Some other notice"},
		{message: "[TRACE]bad|payload|maybe|stamp"},
	}

	nc := NewNoticeCapture()
	handler := nc.Handler()

	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			nc.Reset()
			handler(nil, &pgconn.Notice{Message: tc.message})

			events := nc.Events()
			if tc.expected == nil {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, *tc.expected, events[0])
		})
	}
}

func TestNoticeCapture_LabelsAndTransactions(t *testing.T) {
	nc := NewNoticeCapture()
	handler := nc.Handler()

	for _, msg := range []string{
		"[TRACE]first||off|t1",
		"Some other notice",
		"[TRACE]second||off|t1",
		"[TRACE]third||off|t2",
	} {
		handler(nil, &pgconn.Notice{Message: msg})
	}

	assert.Equal(t, []string{"first", "second", "third"}, nc.Labels())
	assert.Equal(t, 2, nc.Transactions())
	assert.Len(t, nc.RawNotices(), 4)
}

func TestNoticeCapture_IgnoresNil(t *testing.T) {
	nc := NewNoticeCapture()
	nc.Handler()(nil, nil)
	assert.Empty(t, nc.RawNotices())
}

func TestTraceCallbackSQL(t *testing.T) {
	sql := TraceCallbackSQL("app")
	assert.Contains(t, sql, "CREATE OR REPLACE FUNCTION app.marten_trace(label text")
	assert.Contains(t, sql, "RAISE NOTICE '[TRACE]%|%|%|%'")
}
