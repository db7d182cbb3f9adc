package model

import "time"

// ClientIntake はクライアント（家族）からの相談受付内容を表す。
// 保存後は不変で、更新されることはない。
type ClientIntake struct {
	ID           string
	SubmittedAt  time.Time
	Name         string
	Email        string
	Phone        string
	AgeGroup     string   // 自由ラベル
	Location     string   // 自由記述
	Formats      []string // サービス形態の集合（レジストリ順）
	SupportTypes []string // サポート種別の集合（レジストリ順）
}

// ProviderRecord はサービス提供者の登録申請を表す。
// 再申請は新しい行として追記されるため、同一プロバイダーが複数行存在し得る。
type ProviderRecord struct {
	ID                  string
	SubmittedAt         time.Time
	Name                string
	Email               string
	Phone               string
	PracticeName        string
	Website             string
	BookingLink         string
	LicenseType         string
	LicenseNumber       string
	YearsExperience     string
	Specialties         []string
	AgeGroups           []string
	TreatmentApproaches []string
	Languages           []string
	Location            string
	ServiceFormats      []string
	InsuranceAccepted   []string
	AcceptingNewClients TriState
	Bio                 string
}
