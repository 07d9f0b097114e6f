package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Code classifies coordinator errors so the request layer can map them to the
// right HTTP class and clients know whether to retry.
type Code string

const (
	// validation: client errors, surfaced verbatim, no retry implied
	InvalidThreshold   Code = "INVALID_THRESHOLD"
	DuplicateSigner    Code = "DUPLICATE_SIGNER"
	NotASigner         Code = "NOT_A_SIGNER"
	DuplicateSignature Code = "DUPLICATE_SIGNATURE"
	BadRequest         Code = "BAD_REQUEST"

	NotFound Code = "NOT_FOUND"

	// terminal business outcomes
	Expired Code = "EXPIRED"

	// conflict: the caller lost a race; re-fetch state, do not blindly retry
	AlreadyTerminal  Code = "ALREADY_TERMINAL"
	AlreadyExecuting Code = "ALREADY_EXECUTING"
	QuorumNotReached Code = "QUORUM_NOT_REACHED"
	KeyConflict      Code = "KEY_CONFLICT"
	InProgress       Code = "IN_PROGRESS"

	// infrastructure: retryable with the same idempotency key
	StoreUnavailable Code = "STORE_UNAVAILABLE"
	BroadcastFailed  Code = "BROADCAST_FAILED"

	Unexpected Code = "UNEXPECTED"
)

// CoordError carries a code, the operation that produced it and the cause.
type CoordError struct {
	Code Code
	Op   string
	Err  error
}

func (e *CoordError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *CoordError) Unwrap() error {
	return e.Err
}

// E wraps err with a code and operation name.
func E(code Code, op string, err error) error {
	return &CoordError{Code: code, Op: op, Err: err}
}

// Ef builds a coded error from a format string.
func Ef(code Code, op string, format string, args ...interface{}) error {
	return &CoordError{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the code from err, walking wrapped errors.
func CodeOf(err error) Code {
	var ce *CoordError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return Unexpected
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error to the HTTP status its class deserves.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case InvalidThreshold, DuplicateSigner, NotASigner, DuplicateSignature, BadRequest, QuorumNotReached:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Expired:
		return http.StatusGone
	case AlreadyTerminal, AlreadyExecuting, KeyConflict, InProgress:
		return http.StatusConflict
	case BroadcastFailed:
		return http.StatusBadGateway
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func BuildErrMsg(errorType string, err error) error {
	return fmt.Errorf("%s : %v", errorType, err)
}

func BuildAndLogErrorMsg(errorType string, err error) error {
	er := BuildErrMsg(errorType, err)
	log.Error(er)
	return er
}

// Gateway-level error messages used with the Build helpers above.
const (
	MarshallError   = "Error marshalling bytes into structure"
	UnmarshallError = "Error unmarshalling structure into byte"

	WriteRecordError  = "Error writing record to DB"
	ReadRecordError   = "Error reading record from DB"
	UpdateRecordError = "Error updating record in DB"
	AuditAppendError  = "Error appending audit entry"

	DBConnectionError     = "Error connecting to DB"
	DBInitializationError = "Error initializing DB"
	DBConfigurationError  = "Error configuring DB"

	RedisConnectionError = "Error connecting to Redis"
	BroadcastHTTPError   = "Error submitting transaction to broadcast gateway"

	ClientUserIdError = "Error invalid user id"
)

func New(message string) error {
	return stderrors.New(message)
}

// Is re-exports the stdlib matcher so callers don't need two errors imports.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
