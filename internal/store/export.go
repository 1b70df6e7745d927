package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrRunNotFound is returned when exporting an unknown run.
var ErrRunNotFound = errors.New("run not found")

// ExportRun writes a recorded run to w as indented JSON.
func (s *Store) ExportRun(ctx context.Context, id string, w io.Writer) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("get run %s: %w", id, err)
	}
	if run == nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
