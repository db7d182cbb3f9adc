package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coliana/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザープロフィールリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByEmail は正規化済みメールアドレスでプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	u := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT email, name, phone, created_at, updated_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.Email, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return u, nil
}

// Upsert はプロフィールを作成または更新する。
// 主キー制約とON CONFLICTにより、同時実行でも行は1つに保たれる。
func (r *PostgresUserRepo) Upsert(ctx context.Context, u *model.UserProfile) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO UPDATE
		   SET name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at
		 RETURNING created_at`,
		u.Email, u.Name, u.Phone, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// List は全プロフィールを作成順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email, name, phone, created_at, updated_at FROM users ORDER BY created_at, email`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.UserProfile
	for rows.Next() {
		u := &model.UserProfile{}
		if err := rows.Scan(&u.Email, &u.Name, &u.Phone, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ UserProfileRepository = (*PostgresUserRepo)(nil)

// NewPostgresSet はPostgreSQLバックエンドのリポジトリ一式を生成する。
func NewPostgresSet(db *sql.DB) *Set {
	return &Set{
		Clients:   NewPostgresClientRepo(db),
		Providers: NewPostgresProviderRepo(db),
		Matches:   NewPostgresMatchRepo(db),
		Concierge: NewPostgresConciergeRepo(db),
		Users:     NewPostgresUserRepo(db),
	}
}
