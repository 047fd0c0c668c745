package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"governa/internal/sentinel"
	id "governa/pkg/domain"
)

// PostgresStore persists audit records in PostgreSQL. The seq column is a
// bigserial so creation order survives identical timestamps.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed audit store bound to a
// transaction, so records commit together with the mutation they describe.
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

func (s *PostgresStore) Append(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("audit record is required")
	}
	details, err := json.Marshal(record.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	query := `
		INSERT INTO audit_records (id, timestamp, actor, action, target, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`
	err = s.execer().QueryRowContext(ctx, query,
		uuid.UUID(record.ID),
		record.Timestamp,
		record.Actor,
		string(record.Action),
		record.Target,
		details,
	).Scan(&record.Seq)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter *Filter) ([]*Record, error) {
	query := `
		SELECT id, seq, timestamp, actor, action, target, details, published_at
		FROM audit_records
	`
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter != nil {
		if filter.Actor != nil {
			where = append(where, "actor = "+arg(*filter.Actor))
		}
		if filter.Action != nil {
			where = append(where, "action = "+arg(string(*filter.Action)))
		}
		if filter.Target != nil {
			where = append(where, "target = "+arg(*filter.Target))
		}
		if filter.Since != nil {
			where = append(where, "timestamp >= "+arg(*filter.Since))
		}
		if filter.Until != nil {
			where = append(where, "timestamp <= "+arg(*filter.Until))
		}
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	limit := DefaultQueryLimit
	offset := 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		if limit > MaxQueryLimit {
			limit = MaxQueryLimit
		}
		offset = filter.Offset
	}
	query += " ORDER BY seq DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// NextUnpublished returns the oldest records not yet pushed to Kafka.
func (s *PostgresStore) NextUnpublished(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT id, seq, timestamp, actor, action, target, details, published_at
		FROM audit_records
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT $1
	`
	rows, err := s.execer().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// MarkPublished stamps the relay bookkeeping on one record.
func (s *PostgresStore) MarkPublished(ctx context.Context, recordID id.AuditID) error {
	result, err := s.execer().ExecContext(ctx,
		"UPDATE audit_records SET published_at = $1 WHERE id = $2 AND published_at IS NULL",
		time.Now(), uuid.UUID(recordID),
	)
	if err != nil {
		return fmt.Errorf("mark audit record published: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark audit record published: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		recordID    uuid.UUID
		action      string
		details     []byte
		publishedAt sql.NullTime
		record      Record
	)
	err := row.Scan(
		&recordID,
		&record.Seq,
		&record.Timestamp,
		&record.Actor,
		&action,
		&record.Target,
		&details,
		&publishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	record.ID = id.AuditID(recordID)
	record.Action = Action(action)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &record.Details); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		record.PublishedAt = &t
	}
	return &record, nil
}
