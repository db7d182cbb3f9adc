package repository

import (
	"context"
	"strings"

	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/sheet"
)

// sheetTable はワークブック上の1テーブルへのアクセスをまとめる。
// テーブルが未作成の場合はスキーマの見出しで作成する。
type sheetTable struct {
	wb     *sheet.Workbook
	layout *sheet.Layout
	schema sheet.Schema
}

func (s *sheetTable) table() *sheet.Table {
	return s.wb.EnsureTable(s.schema.Name, s.schema.Columns)
}

// append はスキーマ順のセルを既存見出しの列順に並べ替えて追記する。
func (s *sheetTable) append(rows ...[]string) {
	s.table().Mutate(func(tx *sheet.Tx) error {
		header := tx.Header()
		for _, cells := range rows {
			tx.Append(sheet.Align(header, s.schema, cells))
		}
		return nil
	})
}

// rows は現在のテーブル内容と、その見出しに対するデコーダーを返す。空行は除く。
func (s *sheetTable) rows() (*sheet.Decoder, [][]string) {
	header, rows := s.table().Snapshot()
	out := rows[:0]
	for _, r := range rows {
		if !blankRow(r) {
			out = append(out, r)
		}
	}
	return s.layout.NewDecoder(s.schema, header), out
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SheetClientRepo はワークブックのClientsテーブルを使用するクライアント受付リポジトリ。
type SheetClientRepo struct {
	t sheetTable
}

// NewSheetClientRepo はSheetClientRepoを生成する。
func NewSheetClientRepo(wb *sheet.Workbook, layout *sheet.Layout) *SheetClientRepo {
	return &SheetClientRepo{t: sheetTable{wb: wb, layout: layout, schema: layout.Clients()}}
}

// Create は受付内容を1行追記する。
func (r *SheetClientRepo) Create(ctx context.Context, c *model.ClientIntake) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.t.append(r.t.layout.EncodeClient(c))
	return nil
}

// List は全受付内容を行順で返す。
func (r *SheetClientRepo) List(ctx context.Context) ([]*model.ClientIntake, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, rows := r.t.rows()
	out := make([]*model.ClientIntake, 0, len(rows))
	for _, row := range rows {
		out = append(out, dec.Client(row))
	}
	return out, nil
}

// SheetProviderRepo はワークブックのProvidersテーブルを使用するプロバイダーリポジトリ。
type SheetProviderRepo struct {
	t sheetTable
}

// NewSheetProviderRepo はSheetProviderRepoを生成する。
func NewSheetProviderRepo(wb *sheet.Workbook, layout *sheet.Layout) *SheetProviderRepo {
	return &SheetProviderRepo{t: sheetTable{wb: wb, layout: layout, schema: layout.Providers()}}
}

// Create は登録内容を1行追記する。
func (r *SheetProviderRepo) Create(ctx context.Context, p *model.ProviderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.t.append(r.t.layout.EncodeProvider(p))
	return nil
}

// ListAll は全プロバイダーを行順で返す。
// 見出しにない列の属性は空として読まれる。
func (r *SheetProviderRepo) ListAll(ctx context.Context) ([]*model.ProviderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, rows := r.t.rows()
	out := make([]*model.ProviderRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, dec.Provider(row))
	}
	return out, nil
}

// SheetMatchRepo はワークブックのMatchesテーブルを使用するマッチング結果リポジトリ。
type SheetMatchRepo struct {
	t sheetTable
}

// NewSheetMatchRepo はSheetMatchRepoを生成する。
func NewSheetMatchRepo(wb *sheet.Workbook, layout *sheet.Layout) *SheetMatchRepo {
	return &SheetMatchRepo{t: sheetTable{wb: wb, layout: layout, schema: layout.Matches()}}
}

// CreateBatch は照合結果をまとめて追記する。
func (r *SheetMatchRepo) CreateBatch(ctx context.Context, records []*model.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, m := range records {
		rows = append(rows, r.t.layout.EncodeMatch(m))
	}
	r.t.append(rows...)
	return nil
}

// List は全照合結果を行順で返す。
func (r *SheetMatchRepo) List(ctx context.Context) ([]*model.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, rows := r.t.rows()
	out := make([]*model.MatchRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, dec.Match(row))
	}
	return out, nil
}

// SheetConciergeRepo はワークブックのConciergeテーブルを使用するコンシェルジュ依頼リポジトリ。
type SheetConciergeRepo struct {
	t sheetTable
}

// NewSheetConciergeRepo はSheetConciergeRepoを生成する。
func NewSheetConciergeRepo(wb *sheet.Workbook, layout *sheet.Layout) *SheetConciergeRepo {
	return &SheetConciergeRepo{t: sheetTable{wb: wb, layout: layout, schema: layout.Concierge()}}
}

// Create は依頼を1行追記する。
func (r *SheetConciergeRepo) Create(ctx context.Context, c *model.ConciergeRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.t.append(r.t.layout.EncodeConcierge(c))
	return nil
}

// List は全依頼を行順で返す。
func (r *SheetConciergeRepo) List(ctx context.Context) ([]*model.ConciergeRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, rows := r.t.rows()
	out := make([]*model.ConciergeRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, dec.Concierge(row))
	}
	return out, nil
}

// Usersテーブルのスキーマ上の列位置
const (
	userColName  = 1
	userColEmail = 2
	userColPhone = 3
)

// SheetUserRepo はワークブックのUsersテーブルを使用するユーザープロフィールリポジトリ。
type SheetUserRepo struct {
	t sheetTable
}

// NewSheetUserRepo はSheetUserRepoを生成する。
func NewSheetUserRepo(wb *sheet.Workbook, layout *sheet.Layout) *SheetUserRepo {
	return &SheetUserRepo{t: sheetTable{wb: wb, layout: layout, schema: layout.Users()}}
}

// FindByEmail はメールアドレスが一致する最初の行を返す。見つからない場合はnilを返す。
// 比較は両辺をmodel.CanonicalEmailで正規化してから行う。
func (r *SheetUserRepo) FindByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, rows := r.t.rows()
	for _, row := range rows {
		u := dec.User(row)
		if sameEmail(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

// Upsert はテーブルのロックを保持したまま検索と書き込みを行う。
// 既存行があれば名前と電話番号を上書きし、なければ追記する。
func (r *SheetUserRepo) Upsert(ctx context.Context, u *model.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.t.table().Mutate(func(tx *sheet.Tx) error {
		header := tx.Header()
		dec := r.t.layout.NewDecoder(r.t.schema, header)
		emailCol := dec.ColumnIndex(userColEmail)

		if emailCol >= 0 {
			for i := 0; i < tx.Len(); i++ {
				if !sameEmail(tx.Cell(i, emailCol), u.Email) {
					continue
				}
				tx.SetCell(i, dec.ColumnIndex(userColName), u.Name)
				tx.SetCell(i, dec.ColumnIndex(userColPhone), u.Phone)
				if existing := dec.User(rowAt(tx, i, len(header))); !existing.CreatedAt.IsZero() {
					u.CreatedAt = existing.CreatedAt
				}
				return nil
			}
		}

		tx.Append(sheet.Align(header, r.t.schema, r.t.layout.EncodeUser(u)))
		return nil
	})
}

// List は全プロフィールを行順で返す。
func (r *SheetUserRepo) List(ctx context.Context) ([]*model.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec, rows := r.t.rows()
	out := make([]*model.UserProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, dec.User(row))
	}
	return out, nil
}

func rowAt(tx *sheet.Tx, row, width int) []string {
	cells := make([]string, width)
	for j := range cells {
		cells[j] = tx.Cell(row, j)
	}
	return cells
}

// sameEmail は両方を正規形にしてから比較する。
// 取り込んだ既存行はドメインがUnicodeのままのことがあるため、格納値側も正規化する。
func sameEmail(stored, key string) bool {
	a := model.CanonicalEmail(stored)
	return a != "" && a == model.CanonicalEmail(key)
}

// compile-time interface check
var (
	_ ClientRepository      = (*SheetClientRepo)(nil)
	_ ProviderRepository    = (*SheetProviderRepo)(nil)
	_ MatchRepository       = (*SheetMatchRepo)(nil)
	_ ConciergeRepository   = (*SheetConciergeRepo)(nil)
	_ UserProfileRepository = (*SheetUserRepo)(nil)
)

// NewSheetSet はワークブックバックエンドのリポジトリ一式を生成する。
func NewSheetSet(wb *sheet.Workbook, layout *sheet.Layout) *Set {
	return &Set{
		Clients:   NewSheetClientRepo(wb, layout),
		Providers: NewSheetProviderRepo(wb, layout),
		Matches:   NewSheetMatchRepo(wb, layout),
		Concierge: NewSheetConciergeRepo(wb, layout),
		Users:     NewSheetUserRepo(wb, layout),
	}
}
