package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"governa/internal/identity/models"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
)

// PostgresStore persists identities in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed identity store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const identityColumns = `id, employee_id, first_name, last_name, email, department, job_title, status, entitlements, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	entitlements, err := json.Marshal(identity.Entitlements)
	if err != nil {
		return fmt.Errorf("marshal entitlements: %w", err)
	}
	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.execer().ExecContext(ctx, query,
		uuid.UUID(identity.ID),
		identity.EmployeeID,
		identity.FirstName,
		identity.LastName,
		identity.Email,
		string(identity.Department),
		identity.JobTitle,
		string(identity.Status),
		entitlements,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// GetByID fetches one identity. When bound to a transaction the row is
// locked FOR UPDATE so concurrent mutations on the same identity serialize.
func (s *PostgresStore) GetByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1` + s.lockClause()
	return scanIdentity(s.execer().QueryRowContext(ctx, query, uuid.UUID(identityID)))
}

func (s *PostgresStore) GetByEmployeeID(ctx context.Context, employeeID string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE employee_id = $1` + s.lockClause()
	return scanIdentity(s.execer().QueryRowContext(ctx, query, employeeID))
}

func (s *PostgresStore) Update(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	entitlements, err := json.Marshal(identity.Entitlements)
	if err != nil {
		return fmt.Errorf("marshal entitlements: %w", err)
	}
	query := `
		UPDATE identities
		SET first_name = $2, last_name = $3, email = $4, department = $5,
			job_title = $6, status = $7, entitlements = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := s.execer().ExecContext(ctx, query,
		uuid.UUID(identity.ID),
		identity.FirstName,
		identity.LastName,
		identity.Email,
		string(identity.Department),
		identity.JobTitle,
		string(identity.Status),
		entitlements,
		identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns all identities ordered by creation time, oldest first.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY created_at ASC, employee_id ASC`
	rows, err := s.execer().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []*models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// lockClause makes reads inside a transaction take row locks, serializing
// concurrent mutations per identity. Lock order across entities is always
// identity before request to avoid deadlocks with the workflow.
func (s *PostgresStore) lockClause() string {
	if s.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		identityID   uuid.UUID
		department   string
		status       string
		entitlements []byte
		identity     models.Identity
	)
	err := row.Scan(
		&identityID,
		&identity.EmployeeID,
		&identity.FirstName,
		&identity.LastName,
		&identity.Email,
		&department,
		&identity.JobTitle,
		&status,
		&entitlements,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	identity.ID = id.IdentityID(identityID)
	identity.Department = models.Department(department)
	identity.Status = models.Status(status)
	if len(entitlements) > 0 {
		if err := json.Unmarshal(entitlements, &identity.Entitlements); err != nil {
			return nil, fmt.Errorf("unmarshal entitlements: %w", err)
		}
	}
	return &identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
