package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"UserService/internal/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	token_hash TEXT PRIMARY KEY,
	user_id    TEXT    NOT NULL,
	username   TEXT    NOT NULL,
	logged_in  INTEGER NOT NULL,
	login_time INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at);`

// SQLiteStore keeps sessions in a single SQLite file. It survives restarts
// but, like MemoryStore, serves a single instance only.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
	now  func() time.Time
}

// OpenSQLiteStore opens (and creates if needed) the session file at path.
func OpenSQLiteStore(ctx context.Context, path string, opts Options) (*SQLiteStore, error) {
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(WAL)"},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, opts: opts, now: time.Now}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, userID uuid.UUID, username string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	sess := newSession(userID, username, s.now(), s.opts)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, username, logged_in, login_time, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		HashToken(token), sess.UserID.String(), sess.Username, sess.LoggedIn,
		sess.LoginTime.UnixNano(), unixNanoOrZero(sess.ExpiresAt),
	)
	if err != nil {
		return "", storageErr("create", err)
	}
	return token, nil
}

func (s *SQLiteStore) Validate(ctx context.Context, token string) (domain.Session, error) {
	if !wellFormed(token) {
		return domain.Session{}, domain.ErrInvalidSession
	}
	key := HashToken(token)

	var (
		userID    string
		sess      domain.Session
		loginTime int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, logged_in, login_time, expires_at FROM sessions WHERE token_hash = ?`,
		key,
	).Scan(&userID, &sess.Username, &sess.LoggedIn, &loginTime, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrInvalidSession
	}
	if err != nil {
		return domain.Session{}, storageErr("validate", err)
	}
	sess.UserID, err = uuid.Parse(userID)
	if err != nil {
		sess.UserID = uuid.Nil
	}
	sess.LoginTime = time.Unix(0, loginTime).UTC()
	if expiresAt > 0 {
		sess.ExpiresAt = time.Unix(0, expiresAt).UTC()
	}

	now := s.now()
	if !sess.Usable(now) {
		if err := s.Destroy(ctx, token); err != nil {
			return domain.Session{}, err
		}
		return domain.Session{}, domain.ErrInvalidSession
	}
	if s.opts.Sliding && !sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = s.opts.expiry(now).UTC()
		if _, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET expires_at = ? WHERE token_hash = ?`,
			sess.ExpiresAt.UnixNano(), key,
		); err != nil {
			return domain.Session{}, storageErr("touch", err)
		}
	}
	return sess, nil
}

func (s *SQLiteStore) Destroy(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, HashToken(token)); err != nil {
		return storageErr("destroy", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at > 0 AND expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, storageErr("purge", err)
	}
	return res.RowsAffected()
}

// Ping checks the file is still reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
