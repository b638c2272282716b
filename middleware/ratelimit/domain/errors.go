package domain

import "errors"

var (
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
	// ErrStoreUnavailable envolve qualquer falha/timeout do store compartilhado.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
