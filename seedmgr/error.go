package seedmgr

import (
	"fmt"
	"strconv"
)

var (
	// errAlreadyExists is the common error description used for the
	// ErrAlreadyExists error code.
	errAlreadyExists = "the specified account already exists"

	// errClosed is the common error description used for the ErrClosed
	// error code.
	errClosed = "seed manager is closed"

	// errLocked is the common error description used for the ErrLocked
	// error code.
	errLocked = "seed manager is locked"

	// errNoAccount is the common error description used for the
	// ErrNoExist error code when no account has been stored.
	errNoAccount = "no account has been created"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrDatabase indicates an error with the underlying database.  When
	// this error code is set, the Err field of the ManagerError will be
	// set to the underlying error returned from the database.
	ErrDatabase ErrorCode = iota

	// ErrUpgrade indicates the manager needs to be upgraded.  This should
	// not happen in practice unless the version number has been increased
	// and there is not yet any code written to upgrade.
	ErrUpgrade

	// ErrCrypto indicates an error with the cryptography related
	// operations such as decrypting or encrypting data, parsing an EC
	// public key, or deriving a secret key from a password.
	ErrCrypto

	// ErrInvalidKeyType indicates an error where an invalid crypto
	// key type has been selected.
	ErrInvalidKeyType

	// ErrLocked indicates that an operation, which requires the seed
	// manager to be unlocked, was requested on a locked manager.
	ErrLocked

	// ErrWrongPassphrase indicates that the specified passphrase is
	// incorrect.  This could be for either a passphrase derived key or a
	// recovery phrase that does not reproduce the stored seed.
	ErrWrongPassphrase

	// ErrAlreadyExists indicates that the specified account already
	// exists.
	ErrAlreadyExists

	// ErrNoExist indicates that no account has been stored.
	ErrNoExist

	// ErrInvalidMnemonic indicates that a recovery phrase is not a valid
	// BIP0039 mnemonic.
	ErrInvalidMnemonic

	// ErrClosed indicates that the manager has been closed.
	ErrClosed
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDatabase:        "ErrDatabase",
	ErrUpgrade:         "ErrUpgrade",
	ErrCrypto:          "ErrCrypto",
	ErrInvalidKeyType:  "ErrInvalidKeyType",
	ErrLocked:          "ErrLocked",
	ErrWrongPassphrase: "ErrWrongPassphrase",
	ErrAlreadyExists:   "ErrAlreadyExists",
	ErrNoExist:         "ErrNoExist",
	ErrInvalidMnemonic: "ErrInvalidMnemonic",
	ErrClosed:          "ErrClosed",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return "Unknown ErrorCode (" + strconv.Itoa(int(e)) + ")"
}

// ManagerError provides a single type for errors that can happen during seed
// manager operation.  It is used to indicate several types of failures
// including errors with caller requests such as an invalid passphrase or
// operating on a locked manager, cryptographic failures, and database
// errors.
//
// The caller can use type assertions to determine if an error is a
// ManagerError and access the ErrorCode field to ascertain the specific
// reason for the failure.
//
// The ErrDatabase and ErrCrypto error codes will also have the Err field set
// with the underlying error.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e ManagerError) Unwrap() error {
	return e.Err
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(ManagerError)
	return ok && e.ErrorCode == code
}

// maybeConvertDbError converts the passed error to a ManagerError with an
// error code of ErrDatabase if it is not already a ManagerError.  This is
// useful for potential errors returned from managed transaction an other
// parts of the bolt database.
func maybeConvertDbError(err error) error {
	// When the error is already a ManagerError, just return it.
	if _, ok := err.(ManagerError); ok {
		return err
	}

	return managerError(ErrDatabase, fmt.Sprintf("bolt: %v", err), err)
}
