package sheet

import (
	"fmt"
	"strings"
)

// Schema はテーブル名と期待する列見出しの並びを表す。
type Schema struct {
	Name    string
	Columns []string
}

// SchemaError は見出し行に期待する列が欠けている場合のエラー。
type SchemaError struct {
	Table   string
	Missing []string
}

// Error はerrorインターフェースを実装する。
func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %q is missing columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

// Validate はheaderがスキーマの全列を含むかを検証する。
// 欠けている列がある場合は*SchemaErrorを返す。余分な列は許容する。
func (s Schema) Validate(header []string) error {
	missing := Missing(header, s.Columns)
	if len(missing) == 0 {
		return nil
	}
	return &SchemaError{Table: s.Name, Missing: missing}
}

// Resolve はexpectedの各列がheaderの何列目にあるかを返す。見つからない列は-1。
//
// 見出しは前後の空白を除いて比較する。同じ名前がexpected内に複数回現れる場合
// （languagesとinsuranceの"Other"など）、expected内でk番目の出現をheader内の
// k番目の出現に対応付ける。これにより同名列が先頭の1列に潰れることはない。
func Resolve(header, expected []string) []int {
	positions := make(map[string][]int, len(header))
	for i, h := range header {
		key := strings.TrimSpace(h)
		positions[key] = append(positions[key], i)
	}

	seen := make(map[string]int, len(expected))
	index := make([]int, len(expected))
	for i, name := range expected {
		k := seen[name]
		seen[name] = k + 1
		if p := positions[name]; k < len(p) {
			index[i] = p[k]
		} else {
			index[i] = -1
		}
	}
	return index
}

// Missing はheaderに存在しないexpectedの列名を返す。
func Missing(header, expected []string) []string {
	var missing []string
	for i, idx := range Resolve(header, expected) {
		if idx < 0 {
			missing = append(missing, expected[i])
		}
	}
	return missing
}

// ValidateWorkbook はワークブックに存在する各テーブルの見出しをスキーマと照合する。
// 未作成のテーブルは追記時に正しい見出しで作られるため検証対象外とする。
func ValidateWorkbook(wb *Workbook, schemas []Schema) []error {
	var errs []error
	for _, s := range schemas {
		t := wb.Table(s.Name)
		if t == nil {
			continue
		}
		if err := s.Validate(t.Header()); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Align はスキーマ順のcellsをheaderの列順に並べ替える。
// headerにない列は捨て、スキーマにない列は空セルにする。
func Align(header []string, schema Schema, cells []string) []string {
	if equalColumns(header, schema.Columns) {
		return cells
	}
	out := make([]string, len(header))
	for i, idx := range Resolve(header, schema.Columns) {
		if idx >= 0 && i < len(cells) {
			out[idx] = cells[i]
		}
	}
	return out
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != b[i] {
			return false
		}
	}
	return true
}
