package model

import "time"

// MatchResult はクライアント1件に対して条件を満たしたプロバイダー1件を表す。
// プロバイダー情報は非正規化したコピーを保持する。
// MatchedSupportTypes は常に1件以上である。
type MatchResult struct {
	ProviderID          string
	ProviderName        string
	ProviderEmail       string
	ProviderPhone       string
	PracticeName        string
	Location            string
	AcceptingNewClients TriState
	Bio                 string
	BookingLink         string
	WebsiteLink         string
	MatchedSupportTypes []string
	MatchedFormats      []string
}

// MatchRecord は監査・コンシェルジュ対応のために保存するマッチングのスナップショット。
type MatchRecord struct {
	ID          string
	CreatedAt   time.Time
	ClientID    string
	ClientName  string
	ClientEmail string
	ClientPhone string
	MatchResult
}
