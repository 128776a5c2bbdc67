package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ent0n29/intake/internal/reliability"
)

const foreignKeyViolation = "23503"

// PostgresStore persists users and questionnaires in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string, connectAttempts int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pingWithRetry(ctx, pool, connectAttempts); err != nil {
		pool.Close()
		return nil, err
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func pingWithRetry(ctx context.Context, pool *pgxpool.Pool, attempts int) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping postgres: %w", ctx.Err())
		case <-time.After(reliability.ExponentialBackoff(i, 250*time.Millisecond, 5*time.Second)):
		}
	}
	return fmt.Errorf("ping postgres after %d attempts: %w", attempts, err)
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			external_id BIGINT NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS questionnaires (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			data JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'completed', 'reviewed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_questionnaires_user_created ON questionnaires (user_id, created_at DESC);`,
		`CREATE OR REPLACE FUNCTION questionnaires_touch_updated_at() RETURNS trigger AS $$
		BEGIN
			NEW.updated_at = now();
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;`,
		`DROP TRIGGER IF EXISTS trg_questionnaires_updated_at ON questionnaires;`,
		`CREATE TRIGGER trg_questionnaires_updated_at
			BEFORE UPDATE ON questionnaires
			FOR EACH ROW EXECUTE FUNCTION questionnaires_touch_updated_at();`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) ResolveUser(ctx context.Context, p Profile) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (external_id, username, first_name, last_name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (external_id) DO UPDATE SET
			username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
			last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name)
		 RETURNING id`,
		p.ExternalID, p.Username, p.FirstName, p.LastName,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolve user: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, externalID int64) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, external_id, username, first_name, last_name, created_at
		 FROM users WHERE external_id=$1`,
		externalID,
	).Scan(&u.ID, &u.ExternalID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpsertQuestionnaire overwrites the user's latest draft, or inserts a new row
// when there is none. The row lock keeps two writers from both inserting.
func (s *PostgresStore) UpsertQuestionnaire(ctx context.Context, userID int64, doc Document, status Status) (RecordID, error) {
	if err := checkWritable(status); err != nil {
		return "", err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM questionnaires
		 WHERE user_id=$1 AND status='draft'
		 ORDER BY created_at DESC LIMIT 1
		 FOR UPDATE`,
		userID,
	).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id = uuid.New()
		_, err = tx.Exec(ctx,
			`INSERT INTO questionnaires (id, user_id, data, status) VALUES ($1, $2, $3::jsonb, $4)`,
			id, userID, string(data), string(status),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return "", fmt.Errorf("insert questionnaire: %w", ErrUnknownUser)
			}
			return "", fmt.Errorf("insert questionnaire: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("lock draft questionnaire: %w", err)
	default:
		_, err = tx.Exec(ctx,
			`UPDATE questionnaires SET data=$2::jsonb, status=$3 WHERE id=$1`,
			id, string(data), string(status),
		)
		if err != nil {
			return "", fmt.Errorf("update questionnaire: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit questionnaire: %w", err)
	}
	return RecordID(id.String()), nil
}

func (s *PostgresStore) LatestQuestionnaire(ctx context.Context, userID int64) (Record, error) {
	var (
		r      Record
		id     uuid.UUID
		raw    []byte
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, data, status, created_at, updated_at
		 FROM questionnaires WHERE user_id=$1
		 ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&id, &r.UserID, &raw, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("query latest questionnaire: %w", err)
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return Record{}, err
	}
	r.ID = RecordID(id.String())
	r.Data = doc
	r.Status = Status(status)
	return r, nil
}

func (s *PostgresStore) DeleteQuestionnaires(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questionnaires WHERE user_id=$1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete questionnaires: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) MarkReviewed(ctx context.Context, id RecordID) error {
	rid, err := uuid.Parse(string(id))
	if err != nil {
		return fmt.Errorf("parse record id: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE questionnaires SET status='reviewed' WHERE id=$1 AND status='completed'`,
		rid,
	)
	if err != nil {
		return fmt.Errorf("mark reviewed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM questionnaires WHERE id=$1)`, rid).Scan(&exists); err != nil {
		return fmt.Errorf("mark reviewed: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotReviewable
}

func (s *PostgresStore) ListQuestionnaires(ctx context.Context, status Status) ([]Listing, error) {
	if err := checkListable(status); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT q.id, q.user_id, q.data, q.status, q.created_at, q.updated_at,
		        u.id, u.external_id, u.username, u.first_name, u.last_name, u.created_at
		 FROM questionnaires q
		 JOIN users u ON u.id = q.user_id
		 WHERE $1::text = '' OR q.status = $1::text
		 ORDER BY q.created_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list questionnaires: %w", err)
	}
	defer rows.Close()

	out := []Listing{}
	for rows.Next() {
		var (
			l   Listing
			id  uuid.UUID
			raw []byte
			st  string
		)
		if err := rows.Scan(&id, &l.UserID, &raw, &st, &l.CreatedAt, &l.UpdatedAt,
			&l.User.ID, &l.User.ExternalID, &l.User.Username, &l.User.FirstName, &l.User.LastName, &l.User.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan questionnaire: %w", err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		l.ID = RecordID(id.String())
		l.Data = doc
		l.Status = Status(st)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questionnaires: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
