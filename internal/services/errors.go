// Package services implements the two core engines: the authorization state
// machine (AuthService) and the code submission pipeline (PasscodeService).
// This file centralizes the validation error values returned by ValidateCode
// so that callers and tests can branch without string matching. Translation
// into user-facing replies happens inside the services, which return
// outbound actions.
package services

import "errors"

var (
	// ErrCodeTooLong is returned when a submission exceeds the length cap.
	ErrCodeTooLong = errors.New("passcode length exceed")

	// ErrCodeFormat is returned when a submission fails the passcode pattern.
	ErrCodeFormat = errors.New("passcode format error")
)
