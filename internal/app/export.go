package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hitoshi/coliana/internal/repository"
	"github.com/hitoshi/coliana/internal/sheet"
)

// UnknownTableError はexportに存在しないテーブル名が指定された場合のエラー。
type UnknownTableError struct {
	Name string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q (want one of %s)", e.Name, strings.Join(tableNames(), ", "))
}

func tableNames() []string {
	return []string{sheet.TableClients, sheet.TableProviders, sheet.TableMatches, sheet.TableConcierge, sheet.TableUsers}
}

// resolveTable は大文字小文字を区別せずにテーブル名を正規の名前へ解決する。
func resolveTable(name string) (string, bool) {
	for _, t := range tableNames() {
		if strings.EqualFold(strings.TrimSpace(name), t) {
			return t, true
		}
	}
	return "", false
}

// exportTable はreposからtableの全行を読み出し、ワイドレイアウトのCSVとしてwに書き出す。
// バックエンドに関係なくlayoutのエンコーダーで列を展開するため、
// PostgreSQLのデータもスプレッドシートと同じ形で取り出せる。
func exportTable(ctx context.Context, w io.Writer, repos *repository.Set, layout *sheet.Layout, table string) error {
	name, ok := resolveTable(table)
	if !ok {
		return &UnknownTableError{Name: table}
	}
	schema, _ := layout.SchemaFor(name)

	var rows [][]string
	switch name {
	case sheet.TableClients:
		list, err := repos.Clients.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list clients: %w", err)
		}
		for _, c := range list {
			rows = append(rows, layout.EncodeClient(c))
		}
	case sheet.TableProviders:
		list, err := repos.Providers.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to list providers: %w", err)
		}
		for _, p := range list {
			rows = append(rows, layout.EncodeProvider(p))
		}
	case sheet.TableMatches:
		list, err := repos.Matches.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list matches: %w", err)
		}
		for _, m := range list {
			rows = append(rows, layout.EncodeMatch(m))
		}
	case sheet.TableConcierge:
		list, err := repos.Concierge.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list concierge requests: %w", err)
		}
		for _, c := range list {
			rows = append(rows, layout.EncodeConcierge(c))
		}
	case sheet.TableUsers:
		list, err := repos.Users.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list user profiles: %w", err)
		}
		for _, u := range list {
			rows = append(rows, layout.EncodeUser(u))
		}
	}

	return sheet.WriteCSV(w, schema.Columns, rows)
}
