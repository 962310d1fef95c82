package core

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy tag for errors the kernel surfaces to receipts,
// logs, and the JS layer.
type Kind string

const (
	KindInvalidSignature        Kind = "InvalidSignature"
	KindInvalidNonce            Kind = "InvalidNonce"
	KindAccountDoesNotExist     Kind = "AccountDoesNotExist"
	KindAccountExists           Kind = "AccountExists"
	KindInsufficientFunds       Kind = "InsufficientFunds"
	KindBalanceOverflow         Kind = "BalanceOverflow"
	KindGasLimitExceeded        Kind = "GasLimitExceeded"
	KindInvalidHost             Kind = "InvalidHost"
	KindInvalidUri              Kind = "InvalidUri"
	KindInvalidScheme           Kind = "InvalidScheme"
	KindRefererShouldNotBeSet   Kind = "RefererShouldNotBeSet"
	KindInvalidHeaderValue      Kind = "InvalidHeaderValue"
	KindInvalidHttpRequest      Kind = "InvalidHttpRequest"
	KindInvalidHttpRequestBody  Kind = "InvalidHttpRequestBody"
	KindInvalidHttpRequestMethod Kind = "InvalidHttpRequestMethod"
	KindOutboxFull              Kind = "OutboxFull"
	KindStorageFull             Kind = "StorageFull"
	KindTicketInsufficientFunds Kind = "TicketTable::InsufficientFunds"
	KindTicketAccountNotFound   Kind = "TicketTable::AccountNotFound"
	KindParseError              Kind = "ParsedCode::ParseError"
	KindStorageError            Kind = "StorageError"
	KindInvalidAddress          Kind = "InvalidAddress"
	KindDecodeError             Kind = "DecodeError"
)

// Error is the kernel's canonical error type. Kind is stable and suitable
// for receipt tagging; Message carries human-readable detail.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and context to an underlying error. Returns nil if err
// is nil, mirroring pkg/utils.Wrap.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, cause: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or KindStorageError if err is not a
// tagged *Error (an untagged error is always treated as fatal/storage-level).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageError
}
