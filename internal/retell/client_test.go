package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newTestClient(server *httptest.Server, apiKey string) (*Client, *bytes.Buffer) {
	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{APIKey: apiKey, Endpoint: server.URL})
	return c, &buf
}

func TestNewClient_Defaults(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), Config{APIKey: "k"})

	if c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", c.endpoint, DefaultEndpoint)
	}
	if c.defaultAgentID != DefaultAgentID {
		t.Errorf("defaultAgentID = %q, want %q", c.defaultAgentID, DefaultAgentID)
	}
}

// Bearerトークンと既定エージェントで送信し、レスポンスをそのまま返すこと
func TestClient_CreateWebCall_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("リクエストボディのデコードに失敗: %v", err)
		}
		if string(body["agent_id"]) != `"`+DefaultAgentID+`"` {
			t.Errorf("agent_id = %s", body["agent_id"])
		}
		if _, ok := body["metadata"]; ok {
			t.Error("未指定のmetadataが送信された")
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"call_id":"c1","access_token":"tok"}`)
	}))
	defer server.Close()

	c, _ := newTestClient(server, "secret")

	got, err := c.CreateWebCall(context.Background(), WebCallRequest{})
	if err != nil {
		t.Fatalf("CreateWebCall がエラーを返した: %v", err)
	}
	if string(got) != `{"call_id":"c1","access_token":"tok"}` {
		t.Errorf("response = %s", got)
	}
}

// 指定されたパススルー項目は解釈せずに送信されること
func TestClient_CreateWebCall_Passthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		json.NewDecoder(r.Body).Decode(&body)

		if string(body["agent_id"]) != `"agent_x"` {
			t.Errorf("agent_id = %s", body["agent_id"])
		}
		if string(body["agent_version"]) != `3` {
			t.Errorf("agent_version = %s", body["agent_version"])
		}
		if string(body["retell_llm_dynamic_variables"]) != `{"name":"Sam"}` {
			t.Errorf("retell_llm_dynamic_variables = %s", body["retell_llm_dynamic_variables"])
		}
		io.WriteString(w, `{}`)
	}))
	defer server.Close()

	c, _ := newTestClient(server, "secret")

	_, err := c.CreateWebCall(context.Background(), WebCallRequest{
		AgentID:          "agent_x",
		AgentVersion:     json.RawMessage(`3`),
		DynamicVariables: json.RawMessage(`{"name":"Sam"}`),
	})
	if err != nil {
		t.Fatalf("CreateWebCall がエラーを返した: %v", err)
	}
}

func TestClient_CreateWebCall_MissingAPIKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c, _ := newTestClient(server, "")

	_, err := c.CreateWebCall(context.Background(), WebCallRequest{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
	if called {
		t.Error("APIキー未設定でもAPIが呼び出された")
	}
}

// 2xx以外のステータスはStatusErrorとなり、ログに記録されること
func TestClient_CreateWebCall_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"invalid api key"}`)
	}))
	defer server.Close()

	c, logs := newTestClient(server, "bad")

	_, err := c.CreateWebCall(context.Background(), WebCallRequest{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", statusErr.StatusCode)
	}
	if !strings.Contains(logs.String(), "web call API returned error status") {
		t.Errorf("エラーログが出力されていない: %s", logs.String())
	}
}

func TestClient_CreateWebCall_NonJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>oops</html>")
	}))
	defer server.Close()

	c, _ := newTestClient(server, "secret")

	if _, err := c.CreateWebCall(context.Background(), WebCallRequest{}); err == nil {
		t.Fatal("JSONでない応答でエラーが返されなかった")
	}
}

func TestClient_CreateWebCall_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c, _ := newTestClient(server, "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.CreateWebCall(ctx, WebCallRequest{}); err == nil {
		t.Fatal("タイムアウトでエラーが返されなかった")
	}
}
