package storage

import (
	"context"
	"database/sql"
	"time"
)

// ReplaceUser deletes any user with u.Username and inserts u afresh. Sessions
// of the old account go with it.
func (d *DB) ReplaceUser(ctx context.Context, u User) (User, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE username = ?", u.Username); err != nil {
		return User{}, err
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO users(username, password_hash, role) VALUES(?,?,?)", u.Username, u.PasswordHash, u.Role)
	if err != nil {
		return User{}, classify(err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return User{}, err
	}
	return u, tx.Commit()
}

func (d *DB) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return d.scanUser(d.sql.QueryRowContext(ctx, "SELECT id, username, password_hash, role FROM users WHERE username = ?", username))
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (User, error) {
	return d.scanUser(d.sql.QueryRowContext(ctx, "SELECT id, username, password_hash, role FROM users WHERE id = ?", id))
}

// CreateSession stores a session token.
func (d *DB) CreateSession(ctx context.Context, s Session) error {
	_, err := d.sql.ExecContext(ctx, "INSERT INTO sessions(token, user_id, expires_at) VALUES(?,?,?)", s.Token, s.UserID, s.ExpiresAt.Unix())
	return classify(err)
}

// GetSession returns ErrNotFound for unknown tokens. Expiry is left to the caller.
func (d *DB) GetSession(ctx context.Context, token string) (Session, error) {
	var (
		s       Session
		expires int64
	)
	err := d.sql.QueryRowContext(ctx, "SELECT token, user_id, expires_at FROM sessions WHERE token = ?", token).Scan(&s.Token, &s.UserID, &expires)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.ExpiresAt = time.Unix(expires, 0)
	return s, nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (d *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
