package model

import (
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalEmail はメールアドレスを比較用の正規形に変換する。
// 前後の空白を除いて小文字化し、ドメイン部は国際化ドメイン名をASCII形式に変換する。
// 変換できないドメインは小文字化した値のまま返す。
func CanonicalEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return email
	}

	domain, err := idna.Lookup.ToASCII(email[at+1:])
	if err != nil {
		return email
	}
	return email[:at+1] + domain
}
