package sheet

import (
	"strings"
	"time"

	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/options"
)

// テーブル名
const (
	TableClients   = "Clients"
	TableProviders = "Providers"
	TableMatches   = "Matches"
	TableConcierge = "Concierge"
	TableUsers     = "Users"
)

const (
	// Mark はワイドレイアウトで集合に値が含まれることを示すセル値。
	Mark = "✓"
	// ListSeparator は複数値を1セルに連結する際の区切り文字。
	ListSeparator = ", "
)

// Layout はドメインモデルとワイドレイアウトの行を相互変換する。
// 列の並びはすべてオプションレジストリから導出する。
type Layout struct {
	reg *options.Registry
}

// NewLayout はregの選択肢に基づくLayoutを生成する。
func NewLayout(reg *options.Registry) *Layout {
	return &Layout{reg: reg}
}

// Schemas は全テーブルのスキーマを返す。
func (l *Layout) Schemas() []Schema {
	return []Schema{l.Clients(), l.Providers(), l.Matches(), l.Concierge(), l.Users()}
}

// SchemaFor はテーブル名に対応するスキーマを返す。
func (l *Layout) SchemaFor(name string) (Schema, bool) {
	for _, s := range l.Schemas() {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Schema{}, false
}

// Clients はClientsテーブルのスキーマを返す。
func (l *Layout) Clients() Schema {
	cols := []string{"Timestamp", "Name", "Email", "Phone", "Age Group", "Location", "Format"}
	cols = append(cols, l.reg.SupportTypes...)
	return Schema{Name: TableClients, Columns: cols}
}

// Providers はProvidersテーブルのスキーマを返す。
func (l *Layout) Providers() Schema {
	cols := []string{
		"Timestamp", "Name", "Email", "Phone", "Practice Name", "Website",
		"Booking Link", "License Type", "License Number", "Years Experience",
	}
	cols = append(cols, l.reg.Specialties...)
	cols = append(cols, l.reg.AgeGroups...)
	cols = append(cols, l.reg.TreatmentApproaches...)
	cols = append(cols, l.reg.Languages...)
	cols = append(cols, "Location")
	cols = append(cols, l.reg.ServiceFormats...)
	cols = append(cols, l.reg.InsuranceOptions...)
	cols = append(cols, "Accepting New Clients", "Bio")
	return Schema{Name: TableProviders, Columns: cols}
}

// Matches はMatchesテーブルのスキーマを返す。
func (l *Layout) Matches() Schema {
	return Schema{Name: TableMatches, Columns: []string{
		"Timestamp", "Client Name", "Client Email", "Client Phone",
		"Provider Name", "Provider Email", "Practice Name", "Provider Phone",
		"Matched Support Types", "Matched Formats", "Provider Location",
		"Accepting New Clients", "Bio",
	}}
}

// Concierge はConciergeテーブルのスキーマを返す。
func (l *Layout) Concierge() Schema {
	return Schema{Name: TableConcierge, Columns: []string{
		"Timestamp", "Client Name", "Client Email", "Client Phone", "Age Group",
		"Support Types", "Preferred Format", "Location",
		"Provider Name", "Provider Email", "Provider Phone", "Practice Name",
		"Provider Location", "Accepting New Clients", "Booking Link", "Website",
		"Matched Support Types", "Matched Formats",
	}}
}

// Users はUsersテーブルのスキーマを返す。
func (l *Layout) Users() Schema {
	return Schema{Name: TableUsers, Columns: []string{"Timestamp", "Name", "Email", "Phone"}}
}

// --- エンコード ---

// EncodeClient はClientIntakeをClients行に変換する。
func (l *Layout) EncodeClient(c *model.ClientIntake) []string {
	w := rowWriter{}
	w.put(formatTime(c.SubmittedAt), c.Name, c.Email, c.Phone, c.AgeGroup, c.Location, joinList(c.Formats))
	w.set(l.reg.SupportTypes, c.SupportTypes)
	return w.cells
}

// EncodeProvider はProviderRecordをProviders行に変換する。
func (l *Layout) EncodeProvider(p *model.ProviderRecord) []string {
	w := rowWriter{}
	w.put(formatTime(p.SubmittedAt), p.Name, p.Email, p.Phone, p.PracticeName, p.Website,
		p.BookingLink, p.LicenseType, p.LicenseNumber, p.YearsExperience)
	w.set(l.reg.Specialties, p.Specialties)
	w.set(l.reg.AgeGroups, p.AgeGroups)
	w.set(l.reg.TreatmentApproaches, p.TreatmentApproaches)
	w.set(l.reg.Languages, p.Languages)
	w.put(p.Location)
	w.set(l.reg.ServiceFormats, p.ServiceFormats)
	w.set(l.reg.InsuranceOptions, p.InsuranceAccepted)
	w.put(p.AcceptingNewClients.Label(), p.Bio)
	return w.cells
}

// EncodeMatch はMatchRecordをMatches行に変換する。
func (l *Layout) EncodeMatch(m *model.MatchRecord) []string {
	w := rowWriter{}
	w.put(formatTime(m.CreatedAt), m.ClientName, m.ClientEmail, m.ClientPhone,
		m.ProviderName, m.ProviderEmail, m.PracticeName, m.ProviderPhone,
		joinList(m.MatchedSupportTypes), joinList(m.MatchedFormats), m.Location,
		m.AcceptingNewClients.Label(), m.Bio)
	return w.cells
}

// EncodeConcierge はConciergeRequestをConcierge行に変換する。
func (l *Layout) EncodeConcierge(c *model.ConciergeRequest) []string {
	p := c.Provider
	w := rowWriter{}
	w.put(formatTime(c.CreatedAt), c.ClientName, c.ClientEmail, c.ClientPhone, c.ClientAgeGroup,
		joinList(c.ClientSupportTypes), joinList(c.ClientFormats), c.ClientLocation,
		p.ProviderName, p.ProviderEmail, p.ProviderPhone, p.PracticeName, p.Location,
		p.AcceptingNewClients.Label(), p.BookingLink, p.WebsiteLink,
		joinList(p.MatchedSupportTypes), joinList(p.MatchedFormats))
	return w.cells
}

// EncodeUser はUserProfileをUsers行に変換する。
func (l *Layout) EncodeUser(u *model.UserProfile) []string {
	return []string{formatTime(u.CreatedAt), u.Name, u.Email, u.Phone}
}

// --- デコード ---

// Decoder は特定の見出し行に対して列位置を解決済みの行デコーダー。
// 見出しに存在しない列は「空」として読み取られる。
type Decoder struct {
	layout *Layout
	index  []int
}

// NewDecoder はschemaの列をheaderに対して解決したDecoderを生成する。
func (l *Layout) NewDecoder(schema Schema, header []string) *Decoder {
	return &Decoder{layout: l, index: Resolve(header, schema.Columns)}
}

// ColumnIndex はスキーマのi番目の列が見出しの何列目にあるかを返す。見つからない場合は-1。
func (d *Decoder) ColumnIndex(i int) int {
	if i < 0 || i >= len(d.index) {
		return -1
	}
	return d.index[i]
}

// Client はClients行をClientIntakeに変換する。
func (d *Decoder) Client(row []string) *model.ClientIntake {
	r := d.reader(row)
	c := &model.ClientIntake{}
	c.SubmittedAt = parseTime(r.next())
	c.Name = r.next()
	c.Email = r.next()
	c.Phone = r.next()
	c.AgeGroup = r.next()
	c.Location = r.next()
	c.Formats = splitList(r.next())
	c.SupportTypes = r.set(d.layout.reg.SupportTypes)
	return c
}

// Provider はProviders行をProviderRecordに変換する。
func (d *Decoder) Provider(row []string) *model.ProviderRecord {
	reg := d.layout.reg
	r := d.reader(row)
	p := &model.ProviderRecord{}
	p.SubmittedAt = parseTime(r.next())
	p.Name = r.next()
	p.Email = r.next()
	p.Phone = r.next()
	p.PracticeName = r.next()
	p.Website = r.next()
	p.BookingLink = r.next()
	p.LicenseType = r.next()
	p.LicenseNumber = r.next()
	p.YearsExperience = r.next()
	p.Specialties = r.set(reg.Specialties)
	p.AgeGroups = r.set(reg.AgeGroups)
	p.TreatmentApproaches = r.set(reg.TreatmentApproaches)
	p.Languages = r.set(reg.Languages)
	p.Location = r.next()
	p.ServiceFormats = r.set(reg.ServiceFormats)
	p.InsuranceAccepted = r.set(reg.InsuranceOptions)
	p.AcceptingNewClients = model.ParseTriState(r.next())
	p.Bio = r.next()
	return p
}

// Match はMatches行をMatchRecordに変換する。
func (d *Decoder) Match(row []string) *model.MatchRecord {
	r := d.reader(row)
	m := &model.MatchRecord{}
	m.CreatedAt = parseTime(r.next())
	m.ClientName = r.next()
	m.ClientEmail = r.next()
	m.ClientPhone = r.next()
	m.ProviderName = r.next()
	m.ProviderEmail = r.next()
	m.PracticeName = r.next()
	m.ProviderPhone = r.next()
	m.MatchedSupportTypes = splitList(r.next())
	m.MatchedFormats = splitList(r.next())
	m.Location = r.next()
	m.AcceptingNewClients = model.ParseTriState(r.next())
	m.Bio = r.next()
	return m
}

// Concierge はConcierge行をConciergeRequestに変換する。
func (d *Decoder) Concierge(row []string) *model.ConciergeRequest {
	r := d.reader(row)
	c := &model.ConciergeRequest{}
	c.CreatedAt = parseTime(r.next())
	c.ClientName = r.next()
	c.ClientEmail = r.next()
	c.ClientPhone = r.next()
	c.ClientAgeGroup = r.next()
	c.ClientSupportTypes = splitList(r.next())
	c.ClientFormats = splitList(r.next())
	c.ClientLocation = r.next()
	c.Provider.ProviderName = r.next()
	c.Provider.ProviderEmail = r.next()
	c.Provider.ProviderPhone = r.next()
	c.Provider.PracticeName = r.next()
	c.Provider.Location = r.next()
	c.Provider.AcceptingNewClients = model.ParseTriState(r.next())
	c.Provider.BookingLink = r.next()
	c.Provider.WebsiteLink = r.next()
	c.Provider.MatchedSupportTypes = splitList(r.next())
	c.Provider.MatchedFormats = splitList(r.next())
	return c
}

// User はUsers行をUserProfileに変換する。
func (d *Decoder) User(row []string) *model.UserProfile {
	r := d.reader(row)
	u := &model.UserProfile{}
	u.CreatedAt = parseTime(r.next())
	u.Name = r.next()
	u.Email = r.next()
	u.Phone = r.next()
	u.UpdatedAt = u.CreatedAt
	return u
}

func (d *Decoder) reader(row []string) *rowReader {
	return &rowReader{cells: row, index: d.index}
}

// rowReader はスキーマ順に列を読み進める。
type rowReader struct {
	cells []string
	index []int
	pos   int
}

func (r *rowReader) next() string {
	i := r.pos
	r.pos++
	if i >= len(r.index) {
		return ""
	}
	col := r.index[i]
	if col < 0 || col >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[col])
}

// set はallの各値に対応する列を読み、マークされた値をallの順で返す。
func (r *rowReader) set(all []string) []string {
	selected := make([]string, 0)
	for _, v := range all {
		if r.next() == Mark {
			selected = append(selected, v)
		}
	}
	return selected
}

// rowWriter はスキーマ順にセルを書き足す。
type rowWriter struct {
	cells []string
}

func (w *rowWriter) put(values ...string) {
	w.cells = append(w.cells, values...)
}

func (w *rowWriter) set(all, selected []string) {
	for _, v := range all {
		if options.Contains(selected, v) {
			w.cells = append(w.cells, Mark)
		} else {
			w.cells = append(w.cells, "")
		}
	}
}

func joinList(values []string) string {
	return strings.Join(values, ListSeparator)
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
