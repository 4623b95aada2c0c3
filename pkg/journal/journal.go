// Package journal keeps a durable history of corrective write attempts,
// locally in sqlite or shared in MySQL.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pricecheck/pkg/model"
)

// Attempt is one corrective write and its classified outcome.
type Attempt struct {
	ID     string
	RunID  string
	Scope  string
	PFID   string
	Status model.RemediationStatus
	Detail string
	At     time.Time
}

type Journal interface {
	Record(ctx context.Context, a Attempt) error
	// List returns the attempts for pfid, newest first; limit <= 0 means all.
	List(ctx context.Context, pfid string, limit int) ([]Attempt, error)
	Close() error
}

func (a *Attempt) fill() {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
}

// Open returns the journal for driver ("sqlite" or "mysql"). An empty driver
// yields a journal that records nothing.
func Open(driver, dsn string, log *slog.Logger) (Journal, error) {
	switch driver {
	case "":
		return Nop{}, nil
	case "sqlite":
		return OpenSQLite(dsn)
	case "mysql":
		return OpenMySQL(dsn, log)
	}
	return nil, fmt.Errorf("unknown journal driver %q", driver)
}

type Nop struct{}

func (Nop) Record(context.Context, Attempt) error { return nil }
func (Nop) List(context.Context, string, int) ([]Attempt, error) { return nil, nil }
func (Nop) Close() error { return nil }
