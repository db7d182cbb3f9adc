package model

import "time"

// ConciergeRequest はクライアントが選んだ特定のプロバイダーとの橋渡し依頼を表す。
// クライアント情報とプロバイダー情報を非正規化して1行に記録する。
type ConciergeRequest struct {
	ID        string
	CreatedAt time.Time

	ClientName         string
	ClientEmail        string
	ClientPhone        string
	ClientAgeGroup     string
	ClientSupportTypes []string
	ClientFormats      []string
	ClientLocation     string

	Provider MatchResult
}
