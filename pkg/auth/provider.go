// Package auth obtains and renews the bearer token used against the
// device-management API.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const DefaultTimeout = 120 * time.Second

const setupHint = "run the credential setup manually first (e.g. `source set_jwt.sh`) to cache credentials"

// Provider yields a fresh token.
type Provider interface {
	Acquire(ctx context.Context) (string, error)
}

// CommandProvider runs an external helper and takes its trimmed stdout as the
// token.
type CommandProvider struct {
	Command []string
	Timeout time.Duration
}

func (p CommandProvider) Acquire(ctx context.Context) (string, error) {
	if len(p.Command) == 0 {
		return "", &CredentialError{Op: "acquire", Err: errors.New("no credential command configured")}
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", &CredentialError{Op: "acquire", Hint: setupHint,
				Err: fmt.Errorf("%s timed out after %s (possible password prompt)", p.Command[0], timeout)}
		case errors.Is(err, exec.ErrNotFound):
			return "", &CredentialError{Op: "acquire", Hint: fmt.Sprintf("make sure %s is on PATH", p.Command[0]), Err: err}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &CredentialError{Op: "acquire", Hint: setupHint, Err: fmt.Errorf("%s: %s", p.Command[0], msg)}
	}
	token := strings.TrimSpace(stdout.String())
	if token == "" || token == "null" {
		return "", &CredentialError{Op: "acquire", Hint: setupHint, Err: errors.New("token is empty or null")}
	}
	return token, nil
}

// StaticProvider returns a fixed token, typically from the environment.
type StaticProvider string

func (p StaticProvider) Acquire(context.Context) (string, error) {
	if strings.TrimSpace(string(p)) == "" {
		return "", &CredentialError{Op: "acquire", Err: errors.New("token is empty")}
	}
	return string(p), nil
}

// Credential holds the current token; safe for concurrent use.
type Credential struct {
	mu    sync.RWMutex
	token string
}

func (c *Credential) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Credential) Set(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}
