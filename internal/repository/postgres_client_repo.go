package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coliana/internal/model"
)

// PostgresClientRepo はPostgreSQLを使用したクライアント受付リポジトリ。
type PostgresClientRepo struct {
	db *sql.DB
}

// NewPostgresClientRepo はPostgresClientRepoを生成する。
func NewPostgresClientRepo(db *sql.DB) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

// Create は受付内容を1件追記する。
func (r *PostgresClientRepo) Create(ctx context.Context, c *model.ClientIntake) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, submitted_at, name, email, phone, age_group, location, formats, support_types)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.SubmittedAt, c.Name, c.Email, c.Phone, c.AgeGroup, c.Location,
		textArray(c.Formats), textArray(c.SupportTypes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert client intake: %w", err)
	}
	return nil
}

// List は全受付内容を登録順で返す。
func (r *PostgresClientRepo) List(ctx context.Context) ([]*model.ClientIntake, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, submitted_at, name, email, phone, age_group, location, formats, support_types
		 FROM clients ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list client intakes: %w", err)
	}
	defer rows.Close()

	var clients []*model.ClientIntake
	for rows.Next() {
		c := &model.ClientIntake{}
		if err := rows.Scan(&c.ID, &c.SubmittedAt, &c.Name, &c.Email, &c.Phone, &c.AgeGroup, &c.Location,
			scanTextArray(&c.Formats), scanTextArray(&c.SupportTypes)); err != nil {
			return nil, fmt.Errorf("failed to scan client intake: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate client intakes: %w", err)
	}
	return clients, nil
}

// compile-time interface check
var _ ClientRepository = (*PostgresClientRepo)(nil)
