package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

// PostgresPrincipals stores principals in PostgreSQL.
//
// Notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are quoted with pgx.Identifier.
// - pgx errors are converted to fault errors here and nowhere else.
type PostgresPrincipals struct {
	pool   *pgxpool.Pool
	schema string
	obs    Observer
	now    func() time.Time
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresPrincipals) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "beekeeper").
// The schema name must be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresPrincipals) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("storage: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("storage: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithPostgresObserver reports every operation to o.
func WithPostgresObserver(o Observer) PostgresOption {
	return func(s *PostgresPrincipals) error {
		s.obs = observerOrNop(o)
		return nil
	}
}

// NewPostgresPrincipals constructs the store.
func NewPostgresPrincipals(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresPrincipals, error) {
	st := &PostgresPrincipals{
		pool:   pool,
		schema: "beekeeper",
		obs:    nopObserver{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("storage: nil pool")
	}
	return st, nil
}

func (s *PostgresPrincipals) Name() string { return TablePrincipals }

func (s *PostgresPrincipals) table() string {
	return pgx.Identifier{s.schema, "principals"}.Sanitize()
}

// EnsureSchema creates the schema and principals table when missing.
func (s *PostgresPrincipals) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  username TEXT NULL,
  username_norm TEXT NULL,
  email TEXT NULL,
  email_norm TEXT NULL,
  email_verified BOOLEAN NOT NULL DEFAULT FALSE,
  phone TEXT NULL,
  phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_principals_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_principals_contact CHECK (email IS NOT NULL OR phone IS NOT NULL),
  CONSTRAINT uq_principals_username_norm UNIQUE (username_norm),
  CONSTRAINT uq_principals_email_norm UNIQUE (email_norm),
  CONSTRAINT uq_principals_phone UNIQUE (phone)
);`, pgx.Identifier{s.schema}.Sanitize(), s.table())

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fault.Internal("principals.ensure_schema", err)
	}
	return nil
}

// Create inserts p, assigning an ID and creation time when unset.
func (s *PostgresPrincipals) Create(ctx context.Context, p identity.Principal) (id identity.ID, err error) {
	const op = "principals.create"
	defer func() { s.obs.ObserveOp(TablePrincipals, OpCreate, err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(p.PasswordHash) == "" {
		return "", fault.Invalid(op, "password hash is required")
	}
	if err := p.Contact.Validate(); err != nil {
		return "", err
	}

	now := s.now().UTC()
	if p.ID.IsZero() {
		if p.ID, err = identity.NewID(now); err != nil {
			return "", err
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.Truncate(time.Second)
	}

	var (
		username, usernameNorm *string
		email, emailNorm       *string
		phone                  *string
		emailVerified          bool
		phoneVerified          bool
	)
	if u := strings.TrimSpace(p.Username); u != "" {
		n := identity.NormalizeUsername(u)
		username, usernameNorm = &u, &n
	}
	if p.Contact.Email != nil {
		e := strings.TrimSpace(p.Contact.Email.Address)
		n := identity.NormalizeEmail(e)
		email, emailNorm, emailVerified = &e, &n, p.Contact.Email.Verified
	}
	if p.Contact.Phone != nil {
		n, _ := identity.NormalizePhone(p.Contact.Phone.Number)
		phone, phoneVerified = &n, p.Contact.Phone.Verified
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, username, username_norm, email, email_norm, email_verified,
		     phone, phone_verified, password_hash, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(p.ID), username, usernameNorm, email, emailNorm, emailVerified,
		phone, phoneVerified, p.PasswordHash, p.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return "", fault.ConflictError{Op: op, Resource: ItemPrincipal, Field: field}
		}
		return "", fault.Internal(op, err)
	}
	return p.ID, nil
}

// Read returns the principal with id.
func (s *PostgresPrincipals) Read(ctx context.Context, id identity.ID) (p identity.Principal, err error) {
	defer func() { s.obs.ObserveOp(TablePrincipals, OpRead, err) }()
	return s.queryOne(ctx, "principals.read", `id = $1`, string(id))
}

// Lookup resolves a login identifier (username, email or phone) to its principal.
func (s *PostgresPrincipals) Lookup(ctx context.Context, identifier string) (p identity.Principal, err error) {
	const op = "principals.lookup"
	defer func() { s.obs.ObserveOp(TablePrincipals, OpLookup, err) }()

	key, ok := identity.ParseLookupKey(identifier)
	if !ok {
		return identity.Principal{}, fault.NotFoundError{Op: op, Resource: ItemPrincipal}
	}

	var where string
	switch key.Kind {
	case identity.LookupEmail:
		where = `email_norm = $1`
	case identity.LookupPhone:
		where = `phone = $1`
	default:
		where = `username_norm = $1`
	}
	return s.queryOne(ctx, op, where, key.Value)
}

// SetPasswordHash replaces the stored hash of id.
func (s *PostgresPrincipals) SetPasswordHash(ctx context.Context, id identity.ID, hash string) (err error) {
	const op = "principals.patch"
	defer func() { s.obs.ObserveOp(TablePrincipals, OpPatch, err) }()

	if strings.TrimSpace(hash) == "" {
		return fault.Invalid(op, "password hash is required")
	}
	tag, err := s.pool.Exec(ctx, `UPDATE `+s.table()+` SET password_hash = $2 WHERE id = $1`, string(id), hash)
	if err != nil {
		return fault.Internal(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundError{Op: op, Resource: ItemPrincipal}
	}
	return nil
}

func (s *PostgresPrincipals) queryOne(ctx context.Context, op, where string, arg any) (identity.Principal, error) {
	if err := ctx.Err(); err != nil {
		return identity.Principal{}, err
	}

	var (
		out                  identity.Principal
		id                   string
		username, email      *string
		phone                *string
		emailVerified, phVer bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, email_verified, phone, phone_verified, password_hash, created_at
		   FROM `+s.table()+`
		  WHERE `+where,
		arg,
	).Scan(&id, &username, &email, &emailVerified, &phone, &phVer, &out.PasswordHash, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Principal{}, fault.NotFoundError{Op: op, Resource: ItemPrincipal}
		}
		return identity.Principal{}, fault.Internal(op, err)
	}

	out.ID = identity.ID(id)
	if username != nil {
		out.Username = *username
	}
	if email != nil {
		out.Contact.Email = &identity.Email{Address: *email, Verified: emailVerified}
	}
	if phone != nil {
		out.Contact.Phone = &identity.Phone{Number: *phone, Verified: phVer}
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case strings.Contains(c, "username"):
		return "username", true
	case strings.Contains(c, "email"):
		return "email", true
	case strings.Contains(c, "phone"):
		return "phone", true
	case strings.Contains(c, "pkey"):
		return "key", true
	default:
		return "unique", true
	}
}
