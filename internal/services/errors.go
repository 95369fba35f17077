package services

import "errors"

var (
	// ErrLoginIncorrect is returned for an unknown email or a wrong
	// password; the two cases are deliberately indistinguishable.
	ErrLoginIncorrect = errors.New("email or password is incorrect")

	// ErrAccountInactive is returned when a soft-deleted account tries
	// to sign in or refresh.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrTokenExpired is returned when a persisted reset token has
	// passed its expiry.
	ErrTokenExpired = errors.New("token has expired")

	// ErrPasswordMismatch is returned when the supplied old password
	// does not match the stored hash.
	ErrPasswordMismatch = errors.New("old password is incorrect")

	// ErrForbidden is returned when the acting user does not own the
	// record being mutated and is not an admin.
	ErrForbidden = errors.New("forbidden")
)
