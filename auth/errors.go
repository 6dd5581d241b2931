package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUsernameTaken      = "USERNAME_TAKEN"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	TextCodeMissingCredentials = "MISSING_CREDENTIALS"
	TextCodeInvalidCreds       = goerrors.TextCodeInvalidCredentials
	TextCodeAccountInactive    = goerrors.TextCodeAccountPending
	TextCodeEmptyPassword      = goerrors.TextCodeEmptyPassword
	TextCodeSessionNotFound    = goerrors.TextCodeSessionNotFound
	TextCodeMailDelivery       = "MAIL_DELIVERY_FAILED"
	TextCodeInvalidUID         = "INVALID_UID"
)

// ErrUsernameTaken the username belongs to another account
var ErrUsernameTaken = goerrors.New("Username already registered", goerrors.CategoryValidation).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrEmailTaken the email belongs to another account
var ErrEmailTaken = goerrors.New("Email already registered", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrPasswordTooShort password is under the configured minimum
var ErrPasswordTooShort = goerrors.New("Password too short", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordTooShort).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingCredentials login form was submitted with empty fields
var ErrMissingCredentials = goerrors.New("Please fill all fields", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials is returned for both unknown users and wrong passwords
var ErrInvalidCredentials = goerrors.New("Invalid credentials, try again", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive the account exists but was never activated
var ErrAccountInactive = goerrors.New("Account is not active, please check your email", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString empty passwords can not be hashed
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrUnableToFindSession the request carries no authenticated session
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidUID the encoded identity in an activation link could not be decoded
var ErrInvalidUID = goerrors.New("invalid encoded user id", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidUID).
	WithCode(goerrors.CodeBadRequest)

// IsTextCode reports whether err is a rich error carrying the given text code
func IsTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
