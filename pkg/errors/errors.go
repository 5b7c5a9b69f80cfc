// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrClientNotFound  = errors.New("client not found")
	ErrLoanNotFound    = errors.New("loan not found")
	ErrRequestNotFound = errors.New("loan request not found")
	ErrEntryNotFound   = errors.New("accounting entry not found")
	ErrMetaNotFound    = errors.New("app meta key not found")

	ErrOperatorNotFound      = errors.New("operator not found")
	ErrOperatorAlreadyExists = errors.New("operator already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrTOTPRequired          = errors.New("totp code required")
	ErrInvalidTOTPCode       = errors.New("invalid totp code")

	// Loan math errors
	ErrInvalidLoanInput = errors.New("invalid loan input")

	// Lifecycle errors
	ErrLoanAlreadyPaid      = errors.New("loan is already paid off")
	ErrRequestAlreadyTaken  = errors.New("loan request already consumed")
	ErrInvalidStatusChange  = errors.New("invalid status transition")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrClientHasActiveLoans = errors.New("client still has unpaid loans")

	// File upload errors
	ErrFileUploadFailed   = errors.New("file upload failed")
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrFileNotFound       = errors.New("file not found")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
