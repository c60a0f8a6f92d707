package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantd/grantd/internal/core"
)

var _ core.AuthorizationStore = (*PostgresStore)(nil)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS authorization_grants (
	code         TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL,
	principal    TEXT NOT NULL,
	redirect_uri TEXT NOT NULL DEFAULT '',
	scopes       JSONB NOT NULL DEFAULT '[]',
	access_token JSONB,
	attributes   JSONB,
	issued_at    TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS authorization_grants_expires_at_idx
	ON authorization_grants (expires_at);
`

const (
	sqlInsertGrant = `
		INSERT INTO authorization_grants
			(code, client_id, principal, redirect_uri, scopes, access_token, attributes, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO NOTHING`

	// the WHERE clause is the consume-if-unconsumed guard: only one UPDATE
	// can ever match a row whose access_token is still NULL
	sqlConsumeGrant = `
		UPDATE authorization_grants
		SET access_token = $2, attributes = $3
		WHERE code = $1 AND access_token IS NULL AND expires_at > now()`

	sqlGrantState = `
		SELECT access_token IS NOT NULL
		FROM authorization_grants
		WHERE code = $1 AND expires_at > now()`

	sqlFindByCode = `
		SELECT code, client_id, principal, redirect_uri, scopes, access_token, attributes
		FROM authorization_grants
		WHERE code = $1 AND expires_at > now()`

	sqlDeleteGrant = `DELETE FROM authorization_grants WHERE code = $1`

	sqlListActive = `
		SELECT code, client_id, principal, redirect_uri, scopes, access_token, attributes
		FROM authorization_grants
		WHERE expires_at > now()
		ORDER BY code`

	sqlDeleteExpired = `DELETE FROM authorization_grants WHERE expires_at <= now()`
)

// PostgresStore keeps authorization grants in Postgres. Consumption relies
// on a conditional UPDATE matching only unconsumed rows, so concurrent
// exchanges of one code resolve to a single winner inside the database.
type PostgresStore struct {
	pool    *pgxpool.Pool
	codeTTL time.Duration
}

func NewPostgresStore(ctx context.Context, dsn string, codeTTL time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &PostgresStore{pool: pool, codeTTL: codeTTL}, nil
}

// InitSchema creates the grants table if it does not exist yet.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("creating authorization_grants schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string, kind core.TokenKind) (*core.AuthorizationRecord, error) {
	if kind != core.TokenKindAuthorizationCode {
		return nil, core.ErrGrantNotFound
	}

	row := s.pool.QueryRow(ctx, sqlFindByCode, code)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrGrantNotFound
		}
		return nil, fmt.Errorf("reading grant from postgres: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Save(ctx context.Context, record *core.AuthorizationRecord) error {
	scopes, err := json.Marshal(record.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}
	attributes, err := marshalNullable(record.Attributes)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}

	if !record.Consumed() {
		issuedAt := time.Now()
		tag, err := s.pool.Exec(ctx, sqlInsertGrant,
			record.Code,
			record.ClientID,
			record.PrincipalName,
			record.RedirectURI,
			scopes,
			nil,
			attributes,
			issuedAt,
			issuedAt.Add(s.codeTTL),
		)
		if err != nil {
			return fmt.Errorf("storing grant in postgres: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrCodeExists
		}
		return nil
	}

	accessToken, err := json.Marshal(record.AccessToken)
	if err != nil {
		return fmt.Errorf("encoding access token: %w", err)
	}

	tag, err := s.pool.Exec(ctx, sqlConsumeGrant, record.Code, accessToken, attributes)
	if err != nil {
		return fmt.Errorf("consuming grant in postgres: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// no row matched: find out whether the grant is consumed or gone
	var consumed bool
	err = s.pool.QueryRow(ctx, sqlGrantState, record.Code).Scan(&consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrGrantNotFound
		}
		return fmt.Errorf("checking grant state in postgres: %w", err)
	}
	if consumed {
		return core.ErrCodeConsumed
	}
	return core.ErrGrantNotFound
}

func (s *PostgresStore) Delete(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteGrant, code)
	if err != nil {
		return fmt.Errorf("deleting grant from postgres: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrGrantNotFound
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*core.AuthorizationRecord, error) {
	rows, err := s.pool.Query(ctx, sqlListActive)
	if err != nil {
		return nil, fmt.Errorf("listing grants from postgres: %w", err)
	}
	defer rows.Close()

	records := make([]*core.AuthorizationRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("reading grant row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grant rows: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, sqlDeleteExpired)
	if err != nil {
		return 0, fmt.Errorf("purging expired grants from postgres: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.Row) (*core.AuthorizationRecord, error) {
	var (
		record         core.AuthorizationRecord
		scopesRaw      []byte
		accessTokenRaw []byte
		attributesRaw  []byte
	)
	if err := row.Scan(
		&record.Code,
		&record.ClientID,
		&record.PrincipalName,
		&record.RedirectURI,
		&scopesRaw,
		&accessTokenRaw,
		&attributesRaw,
	); err != nil {
		return nil, err
	}

	if len(scopesRaw) > 0 {
		if err := json.Unmarshal(scopesRaw, &record.Scopes); err != nil {
			return nil, fmt.Errorf("decoding scopes: %w", err)
		}
	}
	if len(accessTokenRaw) > 0 {
		record.AccessToken = &core.AccessToken{}
		if err := json.Unmarshal(accessTokenRaw, record.AccessToken); err != nil {
			return nil, fmt.Errorf("decoding access token: %w", err)
		}
	}
	if len(attributesRaw) > 0 {
		if err := json.Unmarshal(attributesRaw, &record.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes: %w", err)
		}
	}
	return &record, nil
}

func marshalNullable(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
