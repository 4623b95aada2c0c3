package auth

import "fmt"

// CredentialError reports a failure to obtain a usable token.
type CredentialError struct {
	Op   string
	Hint string
	Err  error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }
