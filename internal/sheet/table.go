// Package sheet は見出し行で列を引く表形式ストアを提供する。
// スプレッドシートのワークブックと同じく、名前付きテーブルごとに1行目を見出しとして扱う。
// 集合値はストレージ境界でのみ「値ごとに1列」のワイドレイアウトへ変換する。
package sheet

import (
	"sort"
	"sync"
)

// Table は見出し付きの行指向テーブル。
// すべての操作はテーブル単位のロックで直列化される。
type Table struct {
	mu     sync.Mutex
	name   string
	header []string
	rows   [][]string
}

// Name はテーブル名を返す。
func (t *Table) Name() string {
	return t.name
}

// Header は見出し行のコピーを返す。
func (t *Table) Header() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneRow(t.header)
}

// Len はデータ行数（見出しを除く）を返す。
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Snapshot は見出しと全データ行のコピーを返す。
// 呼び出し元が結果を変更してもテーブルには影響しない。
func (t *Table) Snapshot() (header []string, rows [][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows = make([][]string, len(t.rows))
	for i, r := range t.rows {
		rows[i] = cloneRow(r)
	}
	return cloneRow(t.header), rows
}

// Append は1行を末尾に追記する。
func (t *Table) Append(cells []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, cloneRow(cells))
}

// Mutate はテーブルのロックを保持したままfnを実行する。
// 検索してから書き込む操作（UPSERTなど）を原子的に行うために使用する。
func (t *Table) Mutate(fn func(tx *Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(&Tx{t: t})
}

// Tx はMutate中にのみ有効なテーブル操作ハンドル。
type Tx struct {
	t *Table
}

// Header は見出し行を返す。返り値を変更してはならない。
func (tx *Tx) Header() []string {
	return tx.t.header
}

// Len はデータ行数を返す。
func (tx *Tx) Len() int {
	return len(tx.t.rows)
}

// Cell は行rowの列colの値を返す。範囲外の場合は空文字列を返す。
func (tx *Tx) Cell(row, col int) string {
	if row < 0 || row >= len(tx.t.rows) || col < 0 {
		return ""
	}
	r := tx.t.rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// SetCell は行rowの列colに値を書き込む。行が短い場合は空セルで埋める。
// 範囲外の行やcol < 0は無視する。
func (tx *Tx) SetCell(row, col int, v string) {
	if row < 0 || row >= len(tx.t.rows) || col < 0 {
		return
	}
	r := tx.t.rows[row]
	for len(r) <= col {
		r = append(r, "")
	}
	r[col] = v
	tx.t.rows[row] = r
}

// Append は1行を末尾に追記する。
func (tx *Tx) Append(cells []string) {
	tx.t.rows = append(tx.t.rows, cloneRow(cells))
}

// Workbook は名前付きテーブルの集合。1つの論理データベースに相当する。
type Workbook struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// NewWorkbook は空のWorkbookを生成する。
func NewWorkbook() *Workbook {
	return &Workbook{tables: make(map[string]*Table)}
}

// Table は名前nameのテーブルを返す。存在しない場合はnilを返す。
func (w *Workbook) Table(name string) *Table {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tables[name]
}

// EnsureTable は名前nameのテーブルを返す。
// 存在しない場合は見出しheaderで作成し、見出しが空の既存テーブルにはheaderを設定する。
func (w *Workbook) EnsureTable(name string, header []string) *Table {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.tables[name]
	if !ok {
		t = &Table{name: name, header: cloneRow(header)}
		w.tables[name] = t
		return t
	}

	t.mu.Lock()
	if len(t.header) == 0 {
		t.header = cloneRow(header)
	}
	t.mu.Unlock()
	return t
}

// Put はテーブルを見出しと行で置き換える。CSVからの取り込みで使用する。
func (w *Workbook) Put(name string, header []string, rows [][]string) *Table {
	t := &Table{name: name, header: cloneRow(header)}
	t.rows = make([][]string, len(rows))
	for i, r := range rows {
		t.rows[i] = cloneRow(r)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables[name] = t
	return t
}

// Names はテーブル名を昇順で返す。
func (w *Workbook) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.tables))
	for n := range w.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func cloneRow(r []string) []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r))
	copy(out, r)
	return out
}
