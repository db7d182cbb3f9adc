package model

import "time"

// UserProfile はサインイン済みユーザーの連絡先情報を表す。
// 正規化済みメールアドレスが唯一の一意キーであり、UPSERTで更新される。
type UserProfile struct {
	Email     string // 正規化済み（小文字）
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
