package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coliana/internal/model"
)

// PostgresConciergeRepo はPostgreSQLを使用したコンシェルジュ依頼リポジトリ。
type PostgresConciergeRepo struct {
	db *sql.DB
}

// NewPostgresConciergeRepo はPostgresConciergeRepoを生成する。
func NewPostgresConciergeRepo(db *sql.DB) *PostgresConciergeRepo {
	return &PostgresConciergeRepo{db: db}
}

// Create は依頼を1件追記する。
func (r *PostgresConciergeRepo) Create(ctx context.Context, c *model.ConciergeRequest) error {
	p := c.Provider
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO concierge_requests (
			id, created_at, client_name, client_email, client_phone, client_age_group,
			client_support_types, client_formats, client_location,
			provider_name, provider_email, provider_phone, practice_name, provider_location,
			accepting_new_clients, booking_link, website_link, matched_support_types, matched_formats
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		c.ID, c.CreatedAt, c.ClientName, c.ClientEmail, c.ClientPhone, c.ClientAgeGroup,
		textArray(c.ClientSupportTypes), textArray(c.ClientFormats), c.ClientLocation,
		p.ProviderName, p.ProviderEmail, p.ProviderPhone, p.PracticeName, p.Location,
		string(p.AcceptingNewClients), p.BookingLink, p.WebsiteLink,
		textArray(p.MatchedSupportTypes), textArray(p.MatchedFormats),
	)
	if err != nil {
		return fmt.Errorf("コンシェルジュ依頼の登録に失敗しました: %w", err)
	}
	return nil
}

// List は全依頼を登録順で返す。
func (r *PostgresConciergeRepo) List(ctx context.Context) ([]*model.ConciergeRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, client_name, client_email, client_phone, client_age_group,
			client_support_types, client_formats, client_location,
			provider_name, provider_email, provider_phone, practice_name, provider_location,
			accepting_new_clients, booking_link, website_link, matched_support_types, matched_formats
		 FROM concierge_requests ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("コンシェルジュ依頼一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var requests []*model.ConciergeRequest
	for rows.Next() {
		c := &model.ConciergeRequest{}
		p := &c.Provider
		var accepting string
		if err := rows.Scan(
			&c.ID, &c.CreatedAt, &c.ClientName, &c.ClientEmail, &c.ClientPhone, &c.ClientAgeGroup,
			scanTextArray(&c.ClientSupportTypes), scanTextArray(&c.ClientFormats), &c.ClientLocation,
			&p.ProviderName, &p.ProviderEmail, &p.ProviderPhone, &p.PracticeName, &p.Location,
			&accepting, &p.BookingLink, &p.WebsiteLink,
			scanTextArray(&p.MatchedSupportTypes), scanTextArray(&p.MatchedFormats),
		); err != nil {
			return nil, fmt.Errorf("コンシェルジュ依頼のスキャンに失敗しました: %w", err)
		}
		p.AcceptingNewClients = model.ParseTriState(accepting)
		requests = append(requests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コンシェルジュ依頼一覧の走査に失敗しました: %w", err)
	}
	return requests, nil
}

// compile-time interface check
var _ ConciergeRepository = (*PostgresConciergeRepo)(nil)
