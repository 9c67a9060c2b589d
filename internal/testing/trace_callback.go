package testing

import "fmt"

// TraceFunction is the name of the function created by TraceCallbackSQL.
const TraceFunction = "marten_trace"

// TraceCallbackSQL creates a function that emits a NOTICE in the format
// NoticeCapture parses and returns its label.
//
// Format: [TRACE]label|payload|transaction_read_only|transaction_timestamp
//
// Notices reach the client even when the transaction is later rolled back,
// so a test can see calls whose effects were discarded.
func TraceCallbackSQL(schema string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE FUNCTION %[1]s.%[2]s(label text, payload text DEFAULT '')
RETURNS text LANGUAGE plpgsql AS $$
BEGIN
    RAISE NOTICE '[TRACE]%%|%%|%%|%%',
        label,
        COALESCE(payload, ''),
        current_setting('transaction_read_only'),
        transaction_timestamp();
    RETURN label;
END $$;
`, schema, TraceFunction)
}
