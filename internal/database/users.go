package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salonbook/internal/access"
)

// SaveProfile upserts the contact details shared by a user.
func (db *DB) SaveProfile(ctx context.Context, p access.Profile) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (user_id, name, phone, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			updated_at = excluded.updated_at`,
		p.UserID, p.Name, p.Phone, db.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Profile returns the stored profile of userID.
func (db *DB) Profile(ctx context.Context, userID string) (access.Profile, bool, error) {
	p := access.Profile{UserID: userID}
	err := db.QueryRowContext(ctx, `SELECT name, phone FROM users WHERE user_id = ?`, userID).Scan(&p.Name, &p.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Profile{}, false, nil
	}
	if err != nil {
		return access.Profile{}, false, fmt.Errorf("load profile: %w", err)
	}
	return p, true, nil
}
