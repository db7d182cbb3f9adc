// Package match はクライアントの希望条件とプロバイダー登録内容の照合を提供する。
package match

import (
	"strings"

	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/options"
)

// Engine はクライアント1件と全プロバイダーを照合する。
// 副作用を持たず、永続化は呼び出し側が行う。
type Engine struct {
	reg *options.Registry
}

// NewEngine はregの選択肢順で照合するEngineを生成する。
func NewEngine(reg *options.Registry) *Engine {
	return &Engine{reg: reg}
}

// Match はclientに適合するプロバイダーを登録順に返す。
//
// 照合規則:
//  1. サポート種別はクライアントの希望とプロバイダーのスペシャリティの共通部分。空なら除外
//  2. サービス形態は共通部分を記録するだけで、空でも除外しない
//  3. 所在地が互換でないプロバイダーは除外
//
// 該当がなくてもnilではなく空スライスを返す。
func (e *Engine) Match(client *model.ClientIntake, providers []*model.ProviderRecord) []model.MatchResult {
	results := make([]model.MatchResult, 0)
	if client == nil || len(client.SupportTypes) == 0 {
		return results
	}

	for _, p := range providers {
		if p == nil {
			continue
		}

		supportTypes := intersect(e.reg.SupportTypes, client.SupportTypes, p.Specialties)
		if len(supportTypes) == 0 {
			continue
		}
		if !LocationCompatible(client.Location, p.Location) {
			continue
		}
		formats := intersect(e.reg.ServiceFormats, client.Formats, p.ServiceFormats)

		results = append(results, model.MatchResult{
			ProviderID:          p.ID,
			ProviderName:        p.Name,
			ProviderEmail:       p.Email,
			ProviderPhone:       p.Phone,
			PracticeName:        p.PracticeName,
			Location:            p.Location,
			AcceptingNewClients: p.AcceptingNewClients,
			Bio:                 p.Bio,
			BookingLink:         p.BookingLink,
			WebsiteLink:         p.Website,
			MatchedSupportTypes: supportTypes,
			MatchedFormats:      formats,
		})
	}
	return results
}

// LocationCompatible は2つの所在地が同じ地域を指すとみなせるかを判定する。
// 大小文字を無視し、どちらかが空か、一方が他方を部分文字列として含めば互換とする。
// 空白だけの値は空とみなさない。前後の空白は入力のデコード時に取り除かれている。
// 引数の順序に依存しない。
func LocationCompatible(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// intersect はallの順序でx、yの両方に含まれる値を返す。
func intersect(all, x, y []string) []string {
	out := make([]string, 0)
	for _, v := range all {
		if options.Contains(x, v) && options.Contains(y, v) {
			out = append(out, v)
		}
	}
	return out
}
