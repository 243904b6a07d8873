package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrNotFound     = errors.New("not found")

	ErrBookNotFound   = fmt.Errorf("book %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	ErrLoanNotFound   = fmt.Errorf("loan %w", ErrNotFound)

	ErrBookUnavailable   = errors.New("book is not available")
	ErrQuotaExceeded     = errors.New("loan quota exceeded")
	ErrMemberBlocked     = errors.New("member is blocked")
	ErrLoanAlreadyClosed = errors.New("loan is already closed")
	ErrBookInUse         = errors.New("book is referenced by an active loan")
	ErrMemberInUse       = errors.New("member has active loans")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("invalid credentials")
	ErrStorage           = errors.New("storage failure")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeDuplicateKey      = "DUPLICATE_KEY"
	ErrCodeBookNotFound      = "BOOK_NOT_FOUND"
	ErrCodeMemberNotFound    = "MEMBER_NOT_FOUND"
	ErrCodeLoanNotFound      = "LOAN_NOT_FOUND"
	ErrCodeBookUnavailable   = "BOOK_UNAVAILABLE"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeMemberBlocked     = "MEMBER_BLOCKED"
	ErrCodeLoanAlreadyClosed = "LOAN_ALREADY_CLOSED"
	ErrCodeBookInUse         = "BOOK_IN_USE"
	ErrCodeMemberInUse       = "MEMBER_IN_USE"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeStorageError      = "STORAGE_ERROR"
	ErrCodeCacheError        = "CACHE_ERROR"
)

// Code returns the BusinessError code carried by err, or "" when err is not one.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsStorage reports whether err is a storage failure rather than a rule violation.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

func WrapDuplicateKey(kind, key string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateKey,
		fmt.Sprintf("%s with key %s already exists", kind, key),
		ErrDuplicateKey,
	)
}

func WrapBookNotFound(isbn string) *BusinessError {
	return NewBusinessError(
		ErrCodeBookNotFound,
		fmt.Sprintf("Book with ISBN %s not found", isbn),
		ErrBookNotFound,
	)
}

func WrapMemberNotFound(memberID string) *BusinessError {
	return NewBusinessError(
		ErrCodeMemberNotFound,
		fmt.Sprintf("Member with ID %s not found", memberID),
		ErrMemberNotFound,
	)
}

func WrapLoanNotFound(loanID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %d not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapBookUnavailable(isbn string) *BusinessError {
	return NewBusinessError(
		ErrCodeBookUnavailable,
		fmt.Sprintf("Book with ISBN %s is currently on loan", isbn),
		ErrBookUnavailable,
	)
}

func WrapQuotaExceeded(memberID string, limit int) *BusinessError {
	return NewBusinessError(
		ErrCodeQuotaExceeded,
		fmt.Sprintf("Member %s already holds %d active loans", memberID, limit),
		ErrQuotaExceeded,
	)
}

func WrapMemberBlocked(memberID string) *BusinessError {
	return NewBusinessError(
		ErrCodeMemberBlocked,
		fmt.Sprintf("Member %s is blocked", memberID),
		ErrMemberBlocked,
	)
}

func WrapLoanAlreadyClosed(loanID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyClosed,
		fmt.Sprintf("Loan with ID %d is already closed", loanID),
		ErrLoanAlreadyClosed,
	)
}

func WrapBookInUse(isbn string) *BusinessError {
	return NewBusinessError(
		ErrCodeBookInUse,
		fmt.Sprintf("Book with ISBN %s has an active loan", isbn),
		ErrBookInUse,
	)
}

func WrapMemberInUse(memberID string) *BusinessError {
	return NewBusinessError(
		ErrCodeMemberInUse,
		fmt.Sprintf("Member %s has active loans", memberID),
		ErrMemberInUse,
	)
}

func WrapInvalidInput(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidInput,
		err.Error(),
		ErrInvalidInput,
	)
}

func WrapUnauthorized(username string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnauthorized,
		fmt.Sprintf("authentication failed for %s", username),
		ErrUnauthorized,
	)
}

// WrapStorageError keeps the driver error reachable through errors.Is/As
// while also matching ErrStorage.
func WrapStorageError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeStorageError,
		"storage operation failed",
		fmt.Errorf("%w: %w", ErrStorage, err),
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
