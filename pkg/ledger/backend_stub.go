//go:build !consul

package ledger

import (
	"fmt"
	"log/slog"
)

// NewConsulBackend fails in builds without the consul tag so a deployment
// configured for consul never silently writes a local file.
func NewConsulBackend(addr, key, _ string, _ *slog.Logger) (Backend, error) {
	return nil, fmt.Errorf("ledger backend consul at %s (key %s): %w", addr, key, ErrConsulDisabled)
}
