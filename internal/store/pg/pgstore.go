// Package pg persists console sessions and the audit trail in Postgres.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"payloom.io/internal/audit"
	"payloom.io/internal/identity"
	"payloom.io/internal/session"
)

type Store struct {
	db *sql.DB
}

var _ session.Store = (*Store)(nil)
var _ audit.Sink = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing pool; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies connectivity for the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Create(ctx context.Context, rec *session.Record) error {
	userJSON, err := marshalUser(rec.User)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into sessions(id, user_id, access_token, refresh_token, access_expires_at, expires_at, user_snapshot, created_at, revoked)
		values ($1,$2,$3,$4,$5,$6,$7,$8,false)
	`, rec.ID, rec.UserID, rec.AccessToken, rec.RefreshToken, rec.AccessExpiresAt, rec.ExpiresAt, userJSON, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("session id already exists: %w", err)
		}
		return err
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*session.Record, error) {
	var rec session.Record
	var userJSON []byte
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, access_token, refresh_token, access_expires_at, expires_at, user_snapshot, created_at, revoked
		from sessions where id=$1
	`, id).Scan(&rec.ID, &rec.UserID, &rec.AccessToken, &rec.RefreshToken,
		&rec.AccessExpiresAt, &rec.ExpiresAt, &userJSON, &rec.CreatedAt, &rec.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Revoked || rec.Expired(time.Now().UTC()) {
		return nil, session.ErrRevoked
	}
	if len(userJSON) > 0 {
		var user identity.AuthUser
		if err := json.Unmarshal(userJSON, &user); err != nil {
			return nil, fmt.Errorf("decode user snapshot: %w", err)
		}
		rec.User = &user
	}
	return &rec, nil
}

func (s *Store) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, accessExpiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update sessions
		set access_token=$2, refresh_token=$3, access_expires_at=$4
		where id=$1 and not revoked
	`, id, accessToken, refreshToken, accessExpiresAt)
	if err != nil {
		return err
	}
	return requireRow(res, session.ErrNotFound)
}

func (s *Store) SaveUser(ctx context.Context, id string, user *identity.AuthUser) error {
	userJSON, err := marshalUser(user)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `update sessions set user_snapshot=$2 where id=$1`, id, userJSON)
	if err != nil {
		return err
	}
	return requireRow(res, session.ErrNotFound)
}

func (s *Store) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update sessions set revoked=true where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, session.ErrNotFound)
}

func (s *Store) RevokeByUser(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `update sessions set revoked=true where user_id=$1 and not revoked`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Append persists one audit entry; it backs audit.SetSink.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	fieldsJSON, err := json.Marshal(entry.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into console_audit(ts, event, request_id, user_id, fields)
		values ($1,$2,$3,$4,$5)
	`, entry.Time, entry.Event, nullable(entry.RequestID), nullable(entry.UserID), fieldsJSON)
	return err
}

func marshalUser(user *identity.AuthUser) ([]byte, error) {
	if user == nil {
		return nil, nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user snapshot: %w", err)
	}
	return data, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
