package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/coliana/internal/model"
	"github.com/hitoshi/coliana/internal/retell"
)

// --- モック定義 ---

type mockIntakeService struct {
	submitClientFn    func(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error)
	submitProviderFn  func(ctx context.Context, p *model.ProviderRecord) error
	submitConciergeFn func(ctx context.Context, r *model.ConciergeRequest) error
}

func (m *mockIntakeService) SubmitClient(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error) {
	if m.submitClientFn != nil {
		return m.submitClientFn(ctx, c)
	}
	return []model.MatchResult{}, nil
}

func (m *mockIntakeService) SubmitProvider(ctx context.Context, p *model.ProviderRecord) error {
	if m.submitProviderFn != nil {
		return m.submitProviderFn(ctx, p)
	}
	return nil
}

func (m *mockIntakeService) SubmitConcierge(ctx context.Context, r *model.ConciergeRequest) error {
	if m.submitConciergeFn != nil {
		return m.submitConciergeFn(ctx, r)
	}
	return nil
}

type mockProfileService struct {
	saveFn func(ctx context.Context, email, name, phone string) (*model.UserProfile, error)
	getFn  func(ctx context.Context, email string) (*model.UserProfile, error)
}

func (m *mockProfileService) Save(ctx context.Context, email, name, phone string) (*model.UserProfile, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, email, name, phone)
	}
	return &model.UserProfile{Email: email, Name: name, Phone: phone}, nil
}

func (m *mockProfileService) Get(ctx context.Context, email string) (*model.UserProfile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, email)
	}
	return nil, nil
}

type mockWebCalls struct {
	createWebCallFn func(ctx context.Context, req retell.WebCallRequest) (json.RawMessage, error)
}

func (m *mockWebCalls) CreateWebCall(ctx context.Context, req retell.WebCallRequest) (json.RawMessage, error) {
	if m.createWebCallFn != nil {
		return m.createWebCallFn(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

type mockRecorder struct {
	unrecognized int
	webCalls     []string
}

func (m *mockRecorder) RecordSubmission(formType, result string) {}
func (m *mockRecorder) RecordMatches(count int) {}
func (m *mockRecorder) RecordUnrecognizedFormType() { m.unrecognized++ }
func (m *mockRecorder) RecordWebCall(result string, duration time.Duration) {
	m.webCalls = append(m.webCalls, result)
}
func (m *mockRecorder) RecordHTTPStatus(statusCode int) {}

// --- テストヘルパー ---

type handlerFixture struct {
	intake   *mockIntakeService
	profiles *mockProfileService
	calls    *mockWebCalls
	recorder *mockRecorder
	logs     *bytes.Buffer
}

func newHandlerFixture() *handlerFixture {
	return &handlerFixture{
		intake:   &mockIntakeService{},
		profiles: &mockProfileService{},
		calls:    &mockWebCalls{},
		recorder: &mockRecorder{},
		logs:     &bytes.Buffer{},
	}
}

func (f *handlerFixture) handler(cfg SubmissionConfig) *SubmissionHandler {
	logger := slog.New(slog.NewJSONHandler(f.logs, nil))
	return NewSubmissionHandler(f.intake, f.profiles, f.calls, f.recorder, logger, cfg)
}

func postJSON(h *SubmissionHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Submit(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

// --- client ---

func TestSubmit_Client_ReturnsMatches(t *testing.T) {
	f := newHandlerFixture()
	var got *model.ClientIntake
	f.intake.submitClientFn = func(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error) {
		got = c
		return []model.MatchResult{{
			ProviderName:        "Dr. Lee",
			AcceptingNewClients: model.TriYes,
			MatchedSupportTypes: []string{"ADHD"},
		}}, nil
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"client","name":"Ann","email":"ann@example.com","format":"Online, Hybrid","supportTypes":["ADHD"," Autism "]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if diff := cmp.Diff([]string{"Online", "Hybrid"}, got.Formats); diff != "" {
		t.Errorf("Formats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ADHD", "Autism"}, got.SupportTypes); diff != "" {
		t.Errorf("SupportTypes mismatch (-want +got):\n%s", diff)
	}

	body := decodeBody(t, w)
	if body["result"] != "success" || body["type"] != "client" {
		t.Errorf("body = %v", body)
	}
	matches := body["matches"].([]interface{})
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	m := matches[0].(map[string]interface{})
	if m["providerName"] != "Dr. Lee" || m["acceptingNewClients"] != true {
		t.Errorf("match = %v", m)
	}
	if formats, ok := m["matchedFormats"].([]interface{}); !ok || len(formats) != 0 {
		t.Errorf("matchedFormats = %v, want []", m["matchedFormats"])
	}
}

// マッチ0件でもmatchesは空配列で返ること
func TestSubmit_Client_NoMatches_EmptyArray(t *testing.T) {
	f := newHandlerFixture()
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"client","name":"Ann"}`)

	if !strings.Contains(w.Body.String(), `"matches":[]`) {
		t.Errorf("body = %s, want matches:[]", w.Body.String())
	}
}

func TestSubmit_Client_StoreError_Returns500(t *testing.T) {
	f := newHandlerFixture()
	f.intake.submitClientFn = func(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error) {
		return nil, errors.New("connection refused")
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"client"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeBody(t, w)
	if body["result"] != "error" || body["message"] != "internal error" {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(f.logs.String(), "connection refused") {
		t.Error("ストア障害の詳細がログに記録されていない")
	}
}

// --- formTypeの振り分け ---

func TestSubmit_UnknownFormType_DefaultPolicy_HandledAsClient(t *testing.T) {
	f := newHandlerFixture()
	called := false
	f.intake.submitClientFn = func(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error) {
		called = true
		return nil, nil
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"newsletter","name":"Ann"}`)

	if w.Code != http.StatusOK || !called {
		t.Errorf("status = %d, client called = %v", w.Code, called)
	}
	if f.recorder.unrecognized != 1 {
		t.Errorf("unrecognized count = %d, want 1", f.recorder.unrecognized)
	}
	if !strings.Contains(f.logs.String(), `"level":"WARN"`) {
		t.Error("expected Warn log for unrecognized formType")
	}
}

func TestSubmit_MissingFormType_DefaultPolicy_HandledAsClient(t *testing.T) {
	f := newHandlerFixture()
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"name":"Ann"}`)

	if body := decodeBody(t, w); body["type"] != "client" {
		t.Errorf("body = %v, want type client", body)
	}
}

// 文字列以外のformTypeは未知の種別として扱い、デコードエラーにしないこと
func TestSubmit_NonStringFormType_DefaultPolicy_HandledAsClient(t *testing.T) {
	for _, body := range []string{
		`{"formType":1,"name":"Ann"}`,
		`{"formType":["provider"],"name":"Ann"}`,
		`{"formType":{"type":"provider"},"name":"Ann"}`,
		`{"formType":null,"name":"Ann"}`,
	} {
		f := newHandlerFixture()
		h := f.handler(SubmissionConfig{})

		w := postJSON(h, body)

		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", body, w.Code)
			continue
		}
		if got := decodeBody(t, w); got["type"] != "client" {
			t.Errorf("%s: body = %v, want type client", body, got)
		}
		if f.recorder.unrecognized != 1 {
			t.Errorf("%s: unrecognized count = %d, want 1", body, f.recorder.unrecognized)
		}
	}
}

func TestSubmit_NonStringFormType_RejectPolicy_Returns400(t *testing.T) {
	f := newHandlerFixture()
	h := f.handler(SubmissionConfig{UnknownFormTypePolicy: FormTypePolicyReject})

	w := postJSON(h, `{"formType":1}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != model.ErrCodeUnknownFormType {
		t.Errorf("body = %v", body)
	}
}

func TestSubmit_UnknownFormType_RejectPolicy_Returns400(t *testing.T) {
	f := newHandlerFixture()
	f.intake.submitClientFn = func(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error) {
		t.Fatal("client handler should not be called")
		return nil, nil
	}
	h := f.handler(SubmissionConfig{UnknownFormTypePolicy: FormTypePolicyReject})

	w := postJSON(h, `{"formType":"newsletter"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != model.ErrCodeUnknownFormType {
		t.Errorf("body = %v", body)
	}
}

func TestSubmit_MalformedJSON_Returns400(t *testing.T) {
	f := newHandlerFixture()
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSubmit_EmptyBody_DiagnosticPayload(t *testing.T) {
	f := newHandlerFixture()
	var got *model.ClientIntake
	f.intake.submitClientFn = func(ctx context.Context, c *model.ClientIntake) ([]model.MatchResult, error) {
		got = c
		return nil, nil
	}
	h := f.handler(SubmissionConfig{DiagnosticPayload: true})

	w := postJSON(h, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got == nil || got.Email != "test@example.com" {
		t.Errorf("diagnostic intake = %+v", got)
	}
}

func TestSubmit_EmptyBody_DiagnosticDisabled_Returns400(t *testing.T) {
	f := newHandlerFixture()
	h := f.handler(SubmissionConfig{DiagnosticPayload: false})

	w := postJSON(h, "  ")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != model.ErrCodeBodyRequired {
		t.Errorf("body = %v", body)
	}
}

func TestSubmit_BodyTooLarge_Returns413(t *testing.T) {
	f := newHandlerFixture()
	h := f.handler(SubmissionConfig{MaxBodyBytes: 16})

	w := postJSON(h, `{"formType":"client","name":"`+strings.Repeat("a", 64)+`"}`)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

// --- provider ---

func TestSubmit_Provider_FlexibleFields(t *testing.T) {
	f := newHandlerFixture()
	var got *model.ProviderRecord
	f.intake.submitProviderFn = func(ctx context.Context, p *model.ProviderRecord) error {
		got = p
		return nil
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{
		"formType":"provider",
		"name":"Dr. Lee",
		"yearsExperience": 12,
		"specialties":["ADHD","Autism"],
		"serviceFormat":"Online",
		"acceptingNewClients": false
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["result"] != "success" || body["type"] != "provider" {
		t.Errorf("body = %v", body)
	}
	if got.YearsExperience != "12" {
		t.Errorf("YearsExperience = %q, want %q", got.YearsExperience, "12")
	}
	if diff := cmp.Diff([]string{"Online"}, got.ServiceFormats); diff != "" {
		t.Errorf("ServiceFormats mismatch (-want +got):\n%s", diff)
	}
	if got.AcceptingNewClients != model.TriNo {
		t.Errorf("AcceptingNewClients = %q, want %q", got.AcceptingNewClients, model.TriNo)
	}
}

func TestSubmit_Provider_AcceptingNewClientsVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want model.TriState
	}{
		{`true`, model.TriYes},
		{`"yes"`, model.TriYes},
		{`"No"`, model.TriNo},
		{`null`, model.TriUnspecified},
		{`""`, model.TriUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			f := newHandlerFixture()
			var got model.TriState
			f.intake.submitProviderFn = func(ctx context.Context, p *model.ProviderRecord) error {
				got = p.AcceptingNewClients
				return nil
			}
			h := f.handler(SubmissionConfig{})

			postJSON(h, `{"formType":"provider","acceptingNewClients":`+tt.raw+`}`)

			if got != tt.want {
				t.Errorf("AcceptingNewClients = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- concierge ---

func TestSubmit_Concierge(t *testing.T) {
	f := newHandlerFixture()
	var got *model.ConciergeRequest
	f.intake.submitConciergeFn = func(ctx context.Context, r *model.ConciergeRequest) error {
		got = r
		return nil
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{
		"formType":"concierge",
		"client":{"name":"Ann","supportTypes":"ADHD","format":["Online"]},
		"provider":{"providerName":"Dr. Lee","acceptingNewClients":"","matchedSupportTypes":["ADHD"]}
	}`)

	if body := decodeBody(t, w); body["result"] != "success" || body["type"] != "concierge" {
		t.Errorf("body = %v", body)
	}
	if got.ClientName != "Ann" || got.Provider.ProviderName != "Dr. Lee" {
		t.Errorf("request = %+v", got)
	}
	if diff := cmp.Diff([]string{"ADHD"}, got.ClientSupportTypes); diff != "" {
		t.Errorf("ClientSupportTypes mismatch (-want +got):\n%s", diff)
	}
}

// client/providerが欠落していても空値として保存されること
func TestSubmit_Concierge_MissingParts(t *testing.T) {
	f := newHandlerFixture()
	var got *model.ConciergeRequest
	f.intake.submitConciergeFn = func(ctx context.Context, r *model.ConciergeRequest) error {
		got = r
		return nil
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"concierge"}`)

	if w.Code != http.StatusOK || got == nil {
		t.Fatalf("status = %d, request = %v", w.Code, got)
	}
	if got.ClientName != "" || got.Provider.ProviderName != "" {
		t.Errorf("request = %+v, want empty values", got)
	}
}

// --- save-user ---

func TestSubmit_SaveUser(t *testing.T) {
	f := newHandlerFixture()
	var gotEmail, gotPhone string
	f.profiles.saveFn = func(ctx context.Context, email, name, phone string) (*model.UserProfile, error) {
		gotEmail, gotPhone = email, phone
		return &model.UserProfile{}, nil
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"save-user","email":"ann@example.com","name":"Ann","phone":5550100}`)

	if body := decodeBody(t, w); body["result"] != "success" {
		t.Errorf("body = %v", body)
	}
	if gotEmail != "ann@example.com" || gotPhone != "5550100" {
		t.Errorf("saved email=%q phone=%q", gotEmail, gotPhone)
	}
}

func TestSubmit_SaveUser_EmailRequired(t *testing.T) {
	f := newHandlerFixture()
	f.profiles.saveFn = func(ctx context.Context, email, name, phone string) (*model.UserProfile, error) {
		return nil, model.NewEmailRequiredError()
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"save-user","name":"Ann"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["result"] != "error" || body["message"] != "Email required" {
		t.Errorf("body = %v", body)
	}
}

// --- create-web-call ---

func TestSubmit_CreateWebCall_PassesThroughResponse(t *testing.T) {
	f := newHandlerFixture()
	var got retell.WebCallRequest
	f.calls.createWebCallFn = func(ctx context.Context, req retell.WebCallRequest) (json.RawMessage, error) {
		got = req
		return json.RawMessage(`{"call_id":"c1","access_token":"tok"}`), nil
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"create-web-call","agent_version":3,"metadata":null,"retell_llm_dynamic_variables":{"name":"Ann"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"call_id":"c1","access_token":"tok"}` {
		t.Errorf("body = %s", w.Body.String())
	}
	if string(got.AgentVersion) != "3" {
		t.Errorf("AgentVersion = %s, want 3", got.AgentVersion)
	}
	if got.Metadata != nil {
		t.Errorf("Metadata = %s, want nil for JSON null", got.Metadata)
	}
	if string(got.DynamicVariables) != `{"name":"Ann"}` {
		t.Errorf("DynamicVariables = %s", got.DynamicVariables)
	}
	if diff := cmp.Diff([]string{"success"}, f.recorder.webCalls); diff != "" {
		t.Errorf("web call metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_CreateWebCall_ErrorInline(t *testing.T) {
	f := newHandlerFixture()
	f.calls.createWebCallFn = func(ctx context.Context, req retell.WebCallRequest) (json.RawMessage, error) {
		return nil, retell.ErrMissingAPIKey
	}
	h := f.handler(SubmissionConfig{})

	w := postJSON(h, `{"formType":"create-web-call"}`)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if msg, _ := body["error"].(string); msg == "" {
		t.Errorf("body = %v, want error message", body)
	}
	if diff := cmp.Diff([]string{"error"}, f.recorder.webCalls); diff != "" {
		t.Errorf("web call metrics mismatch (-want +got):\n%s", diff)
	}
}
