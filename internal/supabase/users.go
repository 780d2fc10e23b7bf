package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"salonbook/internal/access"
)

const usersTable = "users"

// SaveProfile upserts a row in the users table keyed by id.
func (s *Store) SaveProfile(ctx context.Context, p access.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.client.From(usersTable).Insert(p, true, "id", "", "").Execute(); err != nil {
		return fmt.Errorf("upsert %s: %w", usersTable, err)
	}
	return nil
}

// Profile loads the users row for userID.
func (s *Store) Profile(ctx context.Context, userID string) (access.Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return access.Profile{}, false, err
	}
	data, _, err := s.client.From(usersTable).
		Select("id, name, phone_number", "", false).
		Eq("id", userID).
		Execute()
	if err != nil {
		return access.Profile{}, false, fmt.Errorf("select %s: %w", usersTable, err)
	}

	var rows []access.Profile
	if err := json.Unmarshal(data, &rows); err != nil {
		return access.Profile{}, false, fmt.Errorf("decode %s: %w", usersTable, err)
	}
	if len(rows) == 0 {
		return access.Profile{}, false, nil
	}
	return rows[0], true, nil
}
