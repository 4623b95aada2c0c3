// Package checkpoint persists the progress of a level-1 sweep so an
// interrupted run can resume after its last completed child scope.
package checkpoint

import (
	"fmt"
	"log/slog"

	"pricecheck/pkg/jsonfile"
	"pricecheck/pkg/model"
)

type Store struct {
	Path string
	Log  *slog.Logger
}

func New(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{Path: path, Log: log}
}

// Load returns the saved checkpoint, or nil when there is none. An
// unreadable file is logged and treated as absent.
func (s *Store) Load() *model.SweepCheckpoint {
	var cp model.SweepCheckpoint
	if err := jsonfile.Load(s.Path, &cp); err != nil {
		if !jsonfile.NotExist(err) {
			s.Log.Warn("checkpoint unreadable, ignoring", "path", s.Path, "error", err)
		}
		return nil
	}
	if cp.Level1 == "" {
		return nil
	}
	return &cp
}

// Save overwrites the checkpoint file.
func (s *Store) Save(cp *model.SweepCheckpoint) error {
	if err := jsonfile.Save(s.Path, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *Store) Delete() error {
	if err := jsonfile.Remove(s.Path); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
