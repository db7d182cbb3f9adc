package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/retell"
)

// フロントエンドごとに送信形式が揺れるため、受信側の型は緩く解釈する。

// stringList はJSON配列、またはカンマ区切りの単一文字列を受け付ける文字列集合。
// 各要素は前後の空白を除き、空要素は捨てる。
type stringList []string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (l *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}

	var raw []string
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.Split(s, ",")
	} else if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("expected array of strings or string: %w", err)
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	*l = out
	return nil
}

// flexString は文字列・数値・nullを受け付けるテキスト値。
type flexString string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number: %w", err)
		}
		*s = flexString(n.String())
	}
	return nil
}

// formTypeJSON はフォーム種別の判別子。
// 文字列以外（数値、配列、オブジェクト、null）は未知の種別として空文字列に読み替える。
type formTypeJSON string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (f *formTypeJSON) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		*f = ""
		return nil
	}
	*f = formTypeJSON(v)
	return nil
}

// triStateJSON はtrue/false/null、または"yes"/"no"などの文字列を受け付ける3値。
type triStateJSON model.TriState

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (t *triStateJSON) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		if x {
			*t = triStateJSON(model.TriYes)
		} else {
			*t = triStateJSON(model.TriNo)
		}
	case string:
		*t = triStateJSON(model.ParseTriState(x))
	default:
		*t = triStateJSON(model.TriUnspecified)
	}
	return nil
}

// submissionRequest はPOST / のリクエストボディ。
// formTypeごとに使うフィールドが異なり、未使用のフィールドは無視する。
type submissionRequest struct {
	FormType formTypeJSON `json:"formType"`

	Name     flexString `json:"name"`
	Email    flexString `json:"email"`
	Phone    flexString `json:"phone"`
	Location flexString `json:"location"`

	// client
	AgeGroup     flexString `json:"ageGroup"`
	Format       stringList `json:"format"`
	SupportTypes stringList `json:"supportTypes"`

	// provider
	PracticeName        flexString   `json:"practiceName"`
	Website             flexString   `json:"website"`
	BookingLink         flexString   `json:"bookingLink"`
	LicenseType         flexString   `json:"licenseType"`
	LicenseNumber       flexString   `json:"licenseNumber"`
	YearsExperience     flexString   `json:"yearsExperience"`
	Specialties         stringList   `json:"specialties"`
	AgeGroups           stringList   `json:"ageGroups"`
	TreatmentApproaches stringList   `json:"treatmentApproaches"`
	Languages           stringList   `json:"languages"`
	ServiceFormat       stringList   `json:"serviceFormat"`
	InsuranceAccepted   stringList   `json:"insuranceAccepted"`
	AcceptingNewClients triStateJSON `json:"acceptingNewClients"`
	Bio                 flexString   `json:"bio"`

	// concierge
	Client   *conciergeClient   `json:"client"`
	Provider *conciergeProvider `json:"provider"`

	// create-web-call
	AgentID          string          `json:"agent_id"`
	AgentVersion     json.RawMessage `json:"agent_version"`
	AgentOverride    json.RawMessage `json:"agent_override"`
	Metadata         json.RawMessage `json:"metadata"`
	DynamicVariables json.RawMessage `json:"retell_llm_dynamic_variables"`
}

type conciergeClient struct {
	Name         flexString `json:"name"`
	Email        flexString `json:"email"`
	Phone        flexString `json:"phone"`
	AgeGroup     flexString `json:"ageGroup"`
	SupportTypes stringList `json:"supportTypes"`
	Format       stringList `json:"format"`
	Location     flexString `json:"location"`
}

// conciergeProvider はクライアント側で保持していたマッチ結果をそのまま受け取る。
type conciergeProvider struct {
	ProviderID          flexString   `json:"providerId"`
	ProviderName        flexString   `json:"providerName"`
	ProviderEmail       flexString   `json:"providerEmail"`
	ProviderPhone       flexString   `json:"providerPhone"`
	PracticeName        flexString   `json:"practiceName"`
	Location            flexString   `json:"location"`
	AcceptingNewClients triStateJSON `json:"acceptingNewClients"`
	Bio                 flexString   `json:"bio"`
	BookingLink         flexString   `json:"bookingLink"`
	WebsiteLink         flexString   `json:"websiteLink"`
	MatchedSupportTypes stringList   `json:"matchedSupportTypes"`
	MatchedFormats      stringList   `json:"matchedFormats"`
}

func (r *submissionRequest) clientIntake() *model.ClientIntake {
	return &model.ClientIntake{
		Name:         string(r.Name),
		Email:        string(r.Email),
		Phone:        string(r.Phone),
		AgeGroup:     string(r.AgeGroup),
		Location:     string(r.Location),
		Formats:      r.Format,
		SupportTypes: r.SupportTypes,
	}
}

func (r *submissionRequest) providerRecord() *model.ProviderRecord {
	return &model.ProviderRecord{
		Name:                string(r.Name),
		Email:               string(r.Email),
		Phone:               string(r.Phone),
		PracticeName:        string(r.PracticeName),
		Website:             string(r.Website),
		BookingLink:         string(r.BookingLink),
		LicenseType:         string(r.LicenseType),
		LicenseNumber:       string(r.LicenseNumber),
		YearsExperience:     string(r.YearsExperience),
		Specialties:         r.Specialties,
		AgeGroups:           r.AgeGroups,
		TreatmentApproaches: r.TreatmentApproaches,
		Languages:           r.Languages,
		Location:            string(r.Location),
		ServiceFormats:      r.ServiceFormat,
		InsuranceAccepted:   r.InsuranceAccepted,
		AcceptingNewClients: model.TriState(r.AcceptingNewClients),
		Bio:                 string(r.Bio),
	}
}

// conciergeRequest はclient/providerの欠落を空値として扱う。
func (r *submissionRequest) conciergeRequest() *model.ConciergeRequest {
	c := r.Client
	if c == nil {
		c = &conciergeClient{}
	}
	p := r.Provider
	if p == nil {
		p = &conciergeProvider{}
	}
	return &model.ConciergeRequest{
		ClientName:         string(c.Name),
		ClientEmail:        string(c.Email),
		ClientPhone:        string(c.Phone),
		ClientAgeGroup:     string(c.AgeGroup),
		ClientSupportTypes: c.SupportTypes,
		ClientFormats:      c.Format,
		ClientLocation:     string(c.Location),
		Provider: model.MatchResult{
			ProviderID:          string(p.ProviderID),
			ProviderName:        string(p.ProviderName),
			ProviderEmail:       string(p.ProviderEmail),
			ProviderPhone:       string(p.ProviderPhone),
			PracticeName:        string(p.PracticeName),
			Location:            string(p.Location),
			AcceptingNewClients: model.TriState(p.AcceptingNewClients),
			Bio:                 string(p.Bio),
			BookingLink:         string(p.BookingLink),
			WebsiteLink:         string(p.WebsiteLink),
			MatchedSupportTypes: p.MatchedSupportTypes,
			MatchedFormats:      p.MatchedFormats,
		},
	}
}

// webCallRequest はJSONのnullを未指定として扱う。
func (r *submissionRequest) webCallRequest() retell.WebCallRequest {
	return retell.WebCallRequest{
		AgentID:          strings.TrimSpace(r.AgentID),
		AgentVersion:     omitNull(r.AgentVersion),
		AgentOverride:    omitNull(r.AgentOverride),
		Metadata:         omitNull(r.Metadata),
		DynamicVariables: omitNull(r.DynamicVariables),
	}
}

func omitNull(raw json.RawMessage) json.RawMessage {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil
	}
	return raw
}

// matchResultJSON はマッチ結果のAPIレスポンス。
type matchResultJSON struct {
	ProviderID          string   `json:"providerId,omitempty"`
	ProviderName        string   `json:"providerName"`
	ProviderEmail       string   `json:"providerEmail"`
	ProviderPhone       string   `json:"providerPhone"`
	PracticeName        string   `json:"practiceName"`
	Location            string   `json:"location"`
	AcceptingNewClients *bool    `json:"acceptingNewClients"`
	Bio                 string   `json:"bio"`
	BookingLink         string   `json:"bookingLink"`
	WebsiteLink         string   `json:"websiteLink"`
	MatchedSupportTypes []string `json:"matchedSupportTypes"`
	MatchedFormats      []string `json:"matchedFormats"`
}

func toMatchResultJSON(m model.MatchResult) matchResultJSON {
	return matchResultJSON{
		ProviderID:          m.ProviderID,
		ProviderName:        m.ProviderName,
		ProviderEmail:       m.ProviderEmail,
		ProviderPhone:       m.ProviderPhone,
		PracticeName:        m.PracticeName,
		Location:            m.Location,
		AcceptingNewClients: m.AcceptingNewClients.Bool(),
		Bio:                 m.Bio,
		BookingLink:         m.BookingLink,
		WebsiteLink:         m.WebsiteLink,
		MatchedSupportTypes: nonNil(m.MatchedSupportTypes),
		MatchedFormats:      nonNil(m.MatchedFormats),
	}
}

func toMatchResultsJSON(results []model.MatchResult) []matchResultJSON {
	out := make([]matchResultJSON, len(results))
	for i, m := range results {
		out[i] = toMatchResultJSON(m)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// userProfileJSON はgetUserProfileのユーザー情報。
type userProfileJSON struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// diagnosticPayload は空ボディのPOSTに対して使う疎通確認用のクライアント送信。
// "Virtual"はレジストリに無いため保存時に捨てられる。
const diagnosticPayload = `{
  "formType": "client",
  "name": "Test User",
  "email": "test@example.com",
  "phone": "555-0123",
  "ageGroup": "Adult (18-64)",
  "location": "Test City",
  "format": ["In-person", "Virtual"],
  "supportTypes": ["Speech and language", "Occupational therapy"]
}`
