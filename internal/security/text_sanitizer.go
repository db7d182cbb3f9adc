package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はフォームの自由記述欄からマークアップを取り除く。
// 結果はHTMLではなくプレーンテキストとして保存される。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去し、エスケープされた文字実体を元の文字に戻して前後の空白を除く。
// "Tom & Jerry" のような通常のテキストは変化しない。
func (s *TextSanitizer) Clean(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
