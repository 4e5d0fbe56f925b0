// Package profile loads the candidate's resume record.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"hotseat/internal/domain"
)

// ErrProfileMissing marks a missing or empty resume record. It is fatal to
// the session; the caller directs the user back to the entry point.
var ErrProfileMissing = errors.New("no resume profile found")

// FileStore reads the resume record from a JSON file at session start.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and validates the profile. The record is read-only for the
// lifetime of the session.
func (s *FileStore) Load(ctx context.Context) (domain.Profile, error) {
	if s.path == "" {
		return domain.Profile{}, ErrProfileMissing
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Profile{}, fmt.Errorf("%w: %s", ErrProfileMissing, s.path)
		}
		return domain.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile domain.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("malformed profile %s: %w", s.path, err)
	}
	if len(profile.Skills) == 0 && len(profile.Experience) == 0 && len(profile.Projects) == 0 {
		return domain.Profile{}, fmt.Errorf("%w: %s has no usable content", ErrProfileMissing, s.path)
	}
	return profile, nil
}
