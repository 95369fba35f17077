package types

// TokenKind distinguishes the signed token variants issued by the API.
type TokenKind int

const (
	TokenAccess TokenKind = iota
	TokenRefresh
	TokenResetPassword
	// TokenEmailVerify is modeled for parity with the account schema but is
	// not wired into any route.
	TokenEmailVerify
)
