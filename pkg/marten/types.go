package marten

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Mode governs who owns the transaction lifecycle of a session.
type Mode int

const (
	// ModeAutoCommit runs every command without an explicit transaction.
	ModeAutoCommit Mode = iota
	// ModeTransactional runs commands in a transaction committed by the session.
	ModeTransactional
	// ModeReadOnly runs commands in a transaction marked read only.
	ModeReadOnly
	// ModeExternal leaves begin, commit and rollback to the caller.
	ModeExternal
)

// String returns a human-readable string representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModeAutoCommit:
		return "autocommit"
	case ModeTransactional:
		return "transactional"
	case ModeReadOnly:
		return "readonly"
	case ModeExternal:
		return "external"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// IsValid returns true if the Mode is a valid, defined value.
func (m Mode) IsValid() bool {
	return m >= ModeAutoCommit && m <= ModeExternal
}

// ParseMode parses the names produced by Mode.String, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "autocommit", "auto":
		return ModeAutoCommit, nil
	case "transactional", "tx":
		return ModeTransactional, nil
	case "readonly", "read-only", "read_only":
		return ModeReadOnly, nil
	case "external", "externally-owned":
		return ModeExternal, nil
	default:
		return ModeAutoCommit, fmt.Errorf("unknown session mode %q: %w", s, ErrInvalidConfig)
	}
}

// DefaultIsolationLevel is used when no isolation level is configured.
const DefaultIsolationLevel = pgx.ReadCommitted

// ParseIsolationLevel accepts PostgreSQL isolation level names with spaces,
// dashes or underscores between words.
func ParseIsolationLevel(s string) (pgx.TxIsoLevel, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", " ", "_", " ").Replace(norm)
	switch norm {
	case "":
		return DefaultIsolationLevel, nil
	case "serializable":
		return pgx.Serializable, nil
	case "repeatable read":
		return pgx.RepeatableRead, nil
	case "read committed":
		return pgx.ReadCommitted, nil
	case "read uncommitted":
		return pgx.ReadUncommitted, nil
	default:
		return "", fmt.Errorf("unknown isolation level %q: %w", s, ErrInvalidConfig)
	}
}

// EnumStorage selects how enum-like parameter values are sent to the database.
type EnumStorage int

const (
	// EnumAsInteger sends the underlying integer value.
	EnumAsInteger EnumStorage = iota
	// EnumAsString sends the value's String() form.
	EnumAsString
)

func (e EnumStorage) String() string {
	if e == EnumAsString {
		return "AsString"
	}
	return "AsInteger"
}

// SessionOptions configures a session that adopts a caller-supplied connection.
type SessionOptions struct {
	// Connection is the caller's open connection. Required.
	Connection Conn

	// Transaction is an already started transaction to run commands in.
	Transaction Tx

	// OwnsConnection makes the session close Connection when it is done.
	OwnsConnection bool

	// OwnsTransactionLifecycle lets the session commit and roll back
	// Transaction. When false the session runs in ModeExternal.
	OwnsTransactionLifecycle bool

	// IsolationLevel for transactions the session begins itself.
	IsolationLevel pgx.TxIsoLevel

	// Timeout applied to each command. Zero means no timeout.
	Timeout time.Duration
}

// Mode derives the operating mode from the ownership flags.
func (o *SessionOptions) Mode() Mode {
	if o.Transaction != nil && !o.OwnsTransactionLifecycle {
		return ModeExternal
	}
	if o.Transaction != nil {
		return ModeTransactional
	}
	return ModeAutoCommit
}

// Validate checks SessionOptions before any connection work starts.
// It returns a multi-error if multiple validation failures occur.
func (o *SessionOptions) Validate() error {
	var errs []error

	if o.Connection == nil {
		errs = append(errs, fmt.Errorf("Connection is required: %w", ErrInvalidConfig))
	}

	if err := ValidateTimeout(o.Timeout); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateTimeout rejects negative command timeouts.
func ValidateTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("command timeout %v is out of range, it must be zero or positive: %w", timeout, ErrInvalidConfig)
	}
	return nil
}

// DbObjectName is a schema-qualified database object name.
type DbObjectName struct {
	Schema string
	Name   string
}

// NewDbObjectName splits "schema.name"; a bare name uses the public schema.
func NewDbObjectName(qualified string) DbObjectName {
	if schema, name, ok := strings.Cut(qualified, "."); ok {
		return DbObjectName{Schema: schema, Name: name}
	}
	return DbObjectName{Schema: "public", Name: qualified}
}

// QualifiedName renders the name quoted for use in SQL.
func (n DbObjectName) QualifiedName() string {
	if n.Schema == "" {
		return pgx.Identifier{n.Name}.Sanitize()
	}
	return pgx.Identifier{n.Schema, n.Name}.Sanitize()
}

func (n DbObjectName) String() string {
	if n.Schema == "" {
		return n.Name
	}
	return n.Schema + "." + n.Name
}

// IsEmpty reports whether no object name was given.
func (n DbObjectName) IsEmpty() bool {
	return strings.TrimSpace(n.Name) == ""
}

// ChangeSet describes what a unit of work saved.
type ChangeSet struct {
	Inserted   []any
	Updated    []any
	Deleted    []any
	Operations []StorageOperation
}

// DocumentTypes lists the distinct document types touched by the operations.
func (c ChangeSet) DocumentTypes() []reflect.Type {
	seen := make(map[reflect.Type]bool)
	var types []reflect.Type
	for _, op := range c.Operations {
		t := op.DocumentType()
		if t == nil || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	CommandTimeout   time.Duration
	SearchPath       string
	AdditionalParams map[string]string

	// AWS IAM authentication (used when AuthMethod is AuthMethodAWSIAM)
	AWSRegion string

	// Google Cloud SQL instance connection name, project:region:instance
	GoogleInstance string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// Validate checks the connection parameters that can be checked offline.
func (c *ConnectionConfig) Validate() error {
	var errs []error

	if !c.AuthMethod.IsValid() {
		errs = append(errs, fmt.Errorf("auth method %v: %w", c.AuthMethod, ErrUnsupportedAuthMethod))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range: %w", c.Port, ErrInvalidConfig))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connect timeout cannot be negative: %w", ErrInvalidConfig))
	}
	if err := ValidateTimeout(c.CommandTimeout); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps configuration names to an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "gcp", "google-iam":
		return AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("auth method %q: %w", s, ErrUnsupportedAuthMethod)
	}
}
