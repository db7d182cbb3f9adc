package model

import "strings"

// TriState は「はい/いいえ/未指定」の3値を表す。
// プロバイダーの新規受付可否に使用する。
type TriState string

const (
	// TriUnspecified は未回答を表す。
	TriUnspecified TriState = ""
	// TriYes は「はい」を表す。
	TriYes TriState = "yes"
	// TriNo は「いいえ」を表す。
	TriNo TriState = "no"
)

// ParseTriState は文字列表現からTriStateを解釈する。
// "yes"/"true"/"y"（大小文字無視）はTriYes、"no"/"false"/"n"はTriNo、それ以外はTriUnspecified。
func ParseTriState(s string) TriState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "y":
		return TriYes
	case "no", "false", "n":
		return TriNo
	default:
		return TriUnspecified
	}
}

// Label はワイドレイアウトのセルに書き込む表示用ラベルを返す。
func (t TriState) Label() string {
	switch t {
	case TriYes:
		return "Yes"
	case TriNo:
		return "No"
	default:
		return ""
	}
}

// Bool はJSON表現用のポインタ値を返す。未指定の場合はnil。
func (t TriState) Bool() *bool {
	switch t {
	case TriYes:
		v := true
		return &v
	case TriNo:
		v := false
		return &v
	default:
		return nil
	}
}
