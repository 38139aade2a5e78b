package auth

import "errors"

var (
	// ErrMissingCredential means the request carried no bearer token.
	ErrMissingCredential = errors.New("no bearer credential presented")

	// ErrExpiredToken means the token's expiry time has passed.
	ErrExpiredToken = errors.New("token has expired")

	// ErrBadSignature means the token's MAC does not match the secret.
	ErrBadSignature = errors.New("token signature is invalid")

	// ErrMalformedToken means the token could not be parsed at all.
	ErrMalformedToken = errors.New("token is malformed")
)
