package errors

// Postgres-specific helpers for mapping pgx errors to project ErrorCode and Fault

import (
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes we care about
const (
	pgErrUniqueViolation           = "23505"
	pgErrForeignKeyViolation       = "23503"
	pgErrNotNullViolation          = "23502"
	pgErrCheckViolation            = "23514"
	pgErrStringDataRightTruncation = "22001"
	pgErrInvalidTextRepresentation = "22P02"

	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	pgErrLockNotAvailable     = "55P03"
	pgErrTooManyConnections   = "53300"
	pgErrQueryCanceled        = "57014" // statement_timeout fires this too
	pgErrAdminShutdown        = "57P01"
	pgErrCrashShutdown        = "57P02"
	pgErrCannotConnectNow     = "57P03"

	pgErrConnectionException    = "08000"
	pgErrConnectionDoesNotExist = "08003"
	pgErrConnectionFailure      = "08006"
	pgErrUnableToConnect        = "08001"
	pgErrConnectionRejected     = "08004"
	pgErrProtocolViolation      = "08P01"
)

// pgFaults maps SQLSTATE codes onto the recoverable fault vocabulary
var pgFaults = map[string]Fault{
	pgErrDeadlockDetected:     FaultDeadlock,
	pgErrSerializationFailure: FaultDeadlock,
	pgErrLockNotAvailable:     FaultLockWaitTimeout,
	pgErrTooManyConnections:   FaultTooManyConnections,
	pgErrQueryCanceled:        FaultTimeout,

	pgErrAdminShutdown:    FaultServerShutdown,
	pgErrCrashShutdown:    FaultServerShutdown,
	pgErrCannotConnectNow: FaultServerShutdown,

	pgErrConnectionException:    FaultConnectionLost,
	pgErrConnectionDoesNotExist: FaultConnectionLost,
	pgErrConnectionFailure:      FaultConnectionLost,
	pgErrUnableToConnect:        FaultHandshake,
	pgErrConnectionRejected:     FaultHandshake,
	pgErrProtocolViolation:      FaultHandshake,
}

// ExtractPgError returns (*pgconn.PgError, true) if err carries a PgError
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether the error is a Postgres error with the given SQLSTATE code
func IsSQLState(err error, code string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == code
}

// IsDuplicateKey reports whether the error is a unique constraint violation
func IsDuplicateKey(err error) bool { return IsSQLState(err, pgErrUniqueViolation) }

// IsForeignKeyViolation reports whether the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool { return IsSQLState(err, pgErrForeignKeyViolation) }

// IsDeadlock reports whether the error is a deadlock detected error
func IsDeadlock(err error) bool { return IsSQLState(err, pgErrDeadlockDetected) }

// pgFault classifies a PgError by SQLSTATE; ok is false for non-pg errors
func pgFault(err error) (Fault, bool) {
	pgErr, ok := ExtractPgError(err)
	if !ok {
		return FaultNone, false
	}
	return pgFaults[pgErr.Code], true
}

// DBErrorCode maps a Postgres error to an ErrorCode with an ok flag
// !ok means err wasn't a PgError; caller may fall back to generic handling
func DBErrorCode(err error) (ErrorCode, bool) {
	pgErr, ok := ExtractPgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}

	switch pgErr.Code {
	case pgErrUniqueViolation:
		return ErrorCodeDuplicateKey, true
	case pgErrForeignKeyViolation, pgErrStringDataRightTruncation, pgErrInvalidTextRepresentation:
		return ErrorCodeInvalidArgument, true
	case pgErrNotNullViolation, pgErrCheckViolation:
		return ErrorCodeValidation, true
	}
	if pgFaults[pgErr.Code] != FaultNone {
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps a pg error with a mapped ErrorCode and message.
// If err is nil, returns nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	if code, ok := DBErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	return Wrap(err, ErrorCodeDB, msg)
}

// FromPostgresf is the formatted variant of FromPostgres
func FromPostgresf(err error, format string, a ...any) error {
	return FromPostgres(err, fmt.Sprintf(format, a...))
}

// AttachFieldFromPg tries to enrich an error with a field name derived from PgError.
// Priority: ColumnName -> last token of ConstraintName (i.e., listings_slug_key -> slug).
// Returns the original error if no field can be inferred
func AttachFieldFromPg(err error) error {
	pgErr, ok := ExtractPgError(err)
	if !ok {
		return err
	}
	if col := strings.TrimSpace(pgErr.ColumnName); col != "" {
		return WithField(err, col)
	}
	c := strings.TrimSpace(pgErr.ConstraintName)
	if c == "" {
		return err
	}
	c = strings.TrimSuffix(c, "_key")
	tok := c
	if i := strings.LastIndex(c, "_"); i >= 0 && i+1 < len(c) {
		tok = c[i+1:]
	}
	if tok == "" || tok == "fkey" || tok == "pkey" {
		return err
	}
	return WithField(err, tok)
}
