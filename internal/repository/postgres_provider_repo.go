package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coliana/internal/model"
)

// PostgresProviderRepo はPostgreSQLを使用したプロバイダーリポジトリ。
type PostgresProviderRepo struct {
	db *sql.DB
}

// NewPostgresProviderRepo はPostgresProviderRepoを生成する。
func NewPostgresProviderRepo(db *sql.DB) *PostgresProviderRepo {
	return &PostgresProviderRepo{db: db}
}

// Create は登録内容を1件追記する。
func (r *PostgresProviderRepo) Create(ctx context.Context, p *model.ProviderRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO providers (
			id, submitted_at, name, email, phone, practice_name, website, booking_link,
			license_type, license_number, years_experience,
			specialties, age_groups, treatment_approaches, languages,
			location, service_formats, insurance_accepted, accepting_new_clients, bio
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		p.ID, p.SubmittedAt, p.Name, p.Email, p.Phone, p.PracticeName, p.Website, p.BookingLink,
		p.LicenseType, p.LicenseNumber, p.YearsExperience,
		textArray(p.Specialties), textArray(p.AgeGroups), textArray(p.TreatmentApproaches), textArray(p.Languages),
		p.Location, textArray(p.ServiceFormats), textArray(p.InsuranceAccepted), string(p.AcceptingNewClients), p.Bio,
	)
	if err != nil {
		return fmt.Errorf("プロバイダーの登録に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全プロバイダーを登録順で返す。
func (r *PostgresProviderRepo) ListAll(ctx context.Context) ([]*model.ProviderRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, submitted_at, name, email, phone, practice_name, website, booking_link,
			license_type, license_number, years_experience,
			specialties, age_groups, treatment_approaches, languages,
			location, service_formats, insurance_accepted, accepting_new_clients, bio
		 FROM providers ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("プロバイダー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var providers []*model.ProviderRecord
	for rows.Next() {
		p := &model.ProviderRecord{}
		var accepting string
		if err := rows.Scan(
			&p.ID, &p.SubmittedAt, &p.Name, &p.Email, &p.Phone, &p.PracticeName, &p.Website, &p.BookingLink,
			&p.LicenseType, &p.LicenseNumber, &p.YearsExperience,
			scanTextArray(&p.Specialties), scanTextArray(&p.AgeGroups),
			scanTextArray(&p.TreatmentApproaches), scanTextArray(&p.Languages),
			&p.Location, scanTextArray(&p.ServiceFormats), scanTextArray(&p.InsuranceAccepted), &accepting, &p.Bio,
		); err != nil {
			return nil, fmt.Errorf("プロバイダーのスキャンに失敗しました: %w", err)
		}
		p.AcceptingNewClients = model.ParseTriState(accepting)
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロバイダー一覧の走査に失敗しました: %w", err)
	}
	return providers, nil
}

// compile-time interface check
var _ ProviderRepository = (*PostgresProviderRepo)(nil)
