package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/adminctl/internal/client/storage"
)

// GetState returns the current session state
func (s *Storage) GetState(ctx context.Context) (*storage.SessionState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT device_id, authenticated, user_id, user_login, user_name, user_role,
		        access_token, refresh_token, updated_at
		 FROM session_state WHERE id = 1`,
	)

	var (
		state         storage.SessionState
		authenticated int
		updatedAt     int64
	)
	err := row.Scan(
		&state.DeviceID,
		&authenticated,
		&state.Profile.ID,
		&state.Profile.Login,
		&state.Profile.Name,
		&state.Profile.Role,
		&state.AccessToken,
		&state.RefreshToken,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	state.Authenticated = authenticated != 0
	if updatedAt > 0 {
		state.UpdatedAt = time.Unix(updatedAt, 0)
	}

	return &state, nil
}

// SaveState replaces the session state wholesale.
// DeviceID не перезаписывается: он назначается при инициализации хранилища.
func (s *Storage) SaveState(ctx context.Context, state *storage.SessionState) error {
	if state == nil {
		return fmt.Errorf("session state is nil")
	}

	authenticated := 0
	if state.Authenticated {
		authenticated = 1
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE session_state
		 SET authenticated = ?, user_id = ?, user_login = ?, user_name = ?, user_role = ?,
		     access_token = ?, refresh_token = ?, updated_at = ?
		 WHERE id = 1`,
		authenticated,
		state.Profile.ID,
		state.Profile.Login,
		state.Profile.Name,
		state.Profile.Role,
		state.AccessToken,
		state.RefreshToken,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session state row is missing")
	}

	return nil
}

// ClearSession drops profile, flag and tokens but keeps the DeviceID
func (s *Storage) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_state
		 SET authenticated = 0, user_id = '', user_login = '', user_name = '', user_role = '',
		     access_token = '', refresh_token = '', updated_at = ?
		 WHERE id = 1`,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}
