package derror

import "errors"

var (
	ErrNotFound              = errors.New("product not found")
	ErrLookupUnavailable     = errors.New("product lookup unavailable")
	ErrInvalidProductName    = errors.New("invalid product name")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrQuantityCountMismatch = errors.New("quantity count does not match product count")
	ErrMalformedQuantityList = errors.New("malformed quantity list")
	ErrTurnInProgress        = errors.New("another turn is already in progress for this session")
)
