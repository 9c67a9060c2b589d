package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/apereiratl/marten/pkg/marten"
)

// transientCodes are retryable codes outside the wholly transient classes.
var transientCodes = map[string]bool{
	pgerrcode.SerializationFailure: true,
	pgerrcode.DeadlockDetected:     true,
	pgerrcode.LockNotAvailable:     true,
}

// transientSyscalls are socket errors that usually clear up on reconnect.
var transientSyscalls = []error{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
}

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"network is unreachable",
	"i/o timeout",
	"server closed the connection",
	"unexpected eof",
	"too many connections",
}

// PostgreSQLErrorClassifier implements marten.ErrorClassifier for PostgreSQL errors.
//
// Transient:
//   - Class 08 (connection exception), 53 (insufficient resources), 57 (operator intervention)
//   - 40001 serialization_failure, 40P01 deadlock_detected, 55P03 lock_not_available
//   - network failures reported by the net package
type PostgreSQLErrorClassifier struct{}

// NewPostgreSQLErrorClassifier creates a new PostgreSQL error classifier.
func NewPostgreSQLErrorClassifier() *PostgreSQLErrorClassifier {
	return &PostgreSQLErrorClassifier{}
}

// IsTransient determines if an error is temporary and retryable.
func (c *PostgreSQLErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientCode(pgErr.Code)
	}

	if isTransientNetError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isTransientCode(code string) bool {
	return pgerrcode.IsConnectionException(code) ||
		pgerrcode.IsInsufficientResources(code) ||
		pgerrcode.IsOperatorIntervention(code) ||
		transientCodes[code]
}

func isTransientNetError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	if opErr.Timeout() {
		return true
	}
	for _, errno := range transientSyscalls {
		if errors.Is(opErr.Err, errno) {
			return true
		}
	}
	return false
}

var _ marten.ErrorClassifier = (*PostgreSQLErrorClassifier)(nil)
