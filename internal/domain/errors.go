package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the crypto core. Callers branch on it to decide
// between re-fetching keys, prompting the user and giving up.
type Kind string

const (
	KindUnknown                Kind = "UNKNOWN"
	KindInvalidArgument        Kind = "INVALID_ARGUMENT"
	KindInvalidMnemonic        Kind = "INVALID_MNEMONIC"
	KindInvalidPrekeySignature Kind = "INVALID_PREKEY_SIGNATURE"
	KindDecryptionFailed       Kind = "DECRYPTION_FAILED"
	KindKeyNotFound            Kind = "KEY_NOT_FOUND"
	KindKeyStoreUnavailable    Kind = "KEY_STORE_UNAVAILABLE"
	KindNoMembers              Kind = "NO_MEMBERS"
	KindNoPrekeyBundle         Kind = "NO_PREKEY_BUNDLE"
	KindInternal               Kind = "INTERNAL"
)

// Error is a classified error. Two *Error values match under errors.Is when
// their kinds are equal, so wrapped errors still compare against the sentinels.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError returns a classified error without a cause.
func NewError(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a classified error carrying cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	ErrInvalidArgument        = NewError(KindInvalidArgument, "invalid argument")
	ErrInvalidMnemonic        = NewError(KindInvalidMnemonic, "invalid recovery phrase")
	ErrInvalidPrekeySignature = NewError(KindInvalidPrekeySignature, "prekey signature does not verify")
	ErrDecryptionFailed       = NewError(KindDecryptionFailed, "decryption failed")
	ErrKeyNotFound            = NewError(KindKeyNotFound, "key not found")
	ErrKeyStoreUnavailable    = NewError(KindKeyStoreUnavailable, "key store unavailable; set up encryption again")
	ErrNoMembers              = NewError(KindNoMembers, "channel has no members")
	ErrNoPrekeyBundle         = NewError(KindNoPrekeyBundle, "no bundle")
)
