package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"governa/internal/request/models"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
)

// PostgresStore persists access requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed request store bound to a transaction.
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

const requestColumns = `id, requester_id, entitlement, justification, status, approver_id, reason, sod_warnings, created_at, decided_at`

func (s *PostgresStore) Insert(ctx context.Context, request *models.AccessRequest) error {
	if request == nil {
		return fmt.Errorf("request is required")
	}
	warnings, err := json.Marshal(request.SoDWarnings)
	if err != nil {
		return fmt.Errorf("marshal sod warnings: %w", err)
	}
	query := `
		INSERT INTO access_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer().ExecContext(ctx, query,
		uuid.UUID(request.ID),
		uuid.UUID(request.RequesterID),
		request.Entitlement,
		request.Justification,
		string(request.Status),
		approverValue(request.ApproverID),
		request.Reason,
		warnings,
		request.CreatedAt,
		request.DecidedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

// GetByID fetches one request. When bound to a transaction the row is
// locked FOR UPDATE so concurrent decisions on the same request serialize.
func (s *PostgresStore) GetByID(ctx context.Context, requestID id.RequestID) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1` + s.lockClause()
	return scanRequest(s.execer().QueryRowContext(ctx, query, uuid.UUID(requestID)))
}

func (s *PostgresStore) Update(ctx context.Context, request *models.AccessRequest) error {
	if request == nil {
		return fmt.Errorf("request is required")
	}
	warnings, err := json.Marshal(request.SoDWarnings)
	if err != nil {
		return fmt.Errorf("marshal sod warnings: %w", err)
	}
	query := `
		UPDATE access_requests
		SET status = $2, approver_id = $3, reason = $4, sod_warnings = $5, decided_at = $6
		WHERE id = $1
	`
	result, err := s.execer().ExecContext(ctx, query,
		uuid.UUID(request.ID),
		string(request.Status),
		approverValue(request.ApproverID),
		request.Reason,
		warnings,
		request.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("update access request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update access request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns requests newest-first.
func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests`
	var (
		clauses []string
		args    []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != nil {
		clauses = append(clauses, "status = "+arg(string(*filter.Status)))
	}
	if filter.RequesterID != nil {
		clauses = append(clauses, "requester_id = "+arg(uuid.UUID(*filter.RequesterID)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListPendingByRequester returns the requester's pending requests
// oldest-first. When bound to a transaction the rows are locked FOR UPDATE,
// taken after the requester's identity row per the fixed lock order.
func (s *PostgresStore) ListPendingByRequester(ctx context.Context, requesterID id.IdentityID) ([]*models.AccessRequest, error) {
	query := `
		SELECT ` + requestColumns + ` FROM access_requests
		WHERE requester_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC` + s.lockClause()
	rows, err := s.execer().QueryContext(ctx, query, uuid.UUID(requesterID), string(models.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *PostgresStore) lockClause() string {
	if s.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

func collectRequests(rows *sql.Rows) ([]*models.AccessRequest, error) {
	var requests []*models.AccessRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}
	return requests, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.AccessRequest, error) {
	var (
		requestID   uuid.UUID
		requesterID uuid.UUID
		status      string
		approverID  *uuid.UUID
		warnings    []byte
		request     models.AccessRequest
	)
	err := row.Scan(
		&requestID,
		&requesterID,
		&request.Entitlement,
		&request.Justification,
		&status,
		&approverID,
		&request.Reason,
		&warnings,
		&request.CreatedAt,
		&request.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	request.ID = id.RequestID(requestID)
	request.RequesterID = id.IdentityID(requesterID)
	request.Status = models.Status(status)
	if approverID != nil {
		approver := id.IdentityID(*approverID)
		request.ApproverID = &approver
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &request.SoDWarnings); err != nil {
			return nil, fmt.Errorf("unmarshal sod warnings: %w", err)
		}
	}
	return &request, nil
}

func approverValue(approverID *id.IdentityID) any {
	if approverID == nil {
		return nil
	}
	return uuid.UUID(*approverID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
