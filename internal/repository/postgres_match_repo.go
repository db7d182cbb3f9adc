package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coliana/internal/model"
)

// PostgresMatchRepo はPostgreSQLを使用したマッチング結果リポジトリ。
type PostgresMatchRepo struct {
	db *sql.DB
}

// NewPostgresMatchRepo はPostgresMatchRepoを生成する。
func NewPostgresMatchRepo(db *sql.DB) *PostgresMatchRepo {
	return &PostgresMatchRepo{db: db}
}

// CreateBatch は複数の照合結果を同一トランザクションで追記する。
func (r *PostgresMatchRepo) CreateBatch(ctx context.Context, records []*model.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches (
			id, created_at, client_id, provider_id, client_name, client_email, client_phone,
			provider_name, provider_email, provider_phone, practice_name, location,
			accepting_new_clients, bio, booking_link, website_link,
			matched_support_types, matched_formats
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare match insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range records {
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.CreatedAt, nullableID(m.ClientID), nullableID(m.ProviderID),
			m.ClientName, m.ClientEmail, m.ClientPhone,
			m.ProviderName, m.ProviderEmail, m.ProviderPhone, m.PracticeName, m.Location,
			string(m.AcceptingNewClients), m.Bio, m.BookingLink, m.WebsiteLink,
			textArray(m.MatchedSupportTypes), textArray(m.MatchedFormats),
		); err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List は全照合結果を登録順で返す。
func (r *PostgresMatchRepo) List(ctx context.Context) ([]*model.MatchRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, COALESCE(client_id::text, ''), COALESCE(provider_id::text, ''),
			client_name, client_email, client_phone,
			provider_name, provider_email, provider_phone, practice_name, location,
			accepting_new_clients, bio, booking_link, website_link,
			matched_support_types, matched_formats
		 FROM matches ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var records []*model.MatchRecord
	for rows.Next() {
		m := &model.MatchRecord{}
		var accepting string
		if err := rows.Scan(
			&m.ID, &m.CreatedAt, &m.ClientID, &m.ProviderID,
			&m.ClientName, &m.ClientEmail, &m.ClientPhone,
			&m.ProviderName, &m.ProviderEmail, &m.ProviderPhone, &m.PracticeName, &m.Location,
			&accepting, &m.Bio, &m.BookingLink, &m.WebsiteLink,
			scanTextArray(&m.MatchedSupportTypes), scanTextArray(&m.MatchedFormats),
		); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.AcceptingNewClients = model.ParseTriState(accepting)
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return records, nil
}

// nullableID は空のIDをNULLとして書き込む。
func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

// compile-time interface check
var _ MatchRepository = (*PostgresMatchRepo)(nil)
