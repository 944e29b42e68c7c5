package service

import "errors"

var (
	ErrAlreadyExists   = errors.New("beer already exists")
	ErrNotFound        = errors.New("beer not found")
	ErrStockExceeded   = errors.New("beer stock exceeded")
	ErrNegativeStock   = errors.New("stock quantity can't be negative")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// IsDomainError reports whether err is one of the terminal outcomes above.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStockExceeded) ||
		errors.Is(err, ErrNegativeStock) ||
		errors.Is(err, ErrInvalidQuantity)
}
