// Package retell は音声AIエージェントとのWeb通話セッションを作成するクライアントを提供する。
// APIキーはサーバー側でのみ保持し、ブラウザには払い出したセッション情報だけを返す。
package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// DefaultEndpoint はWeb通話作成APIのエンドポイント。
	DefaultEndpoint = "https://api.retellai.com/v2/create-web-call"
	// DefaultAgentID はリクエストでagent_idが指定されない場合に使用するエージェント。
	DefaultAgentID = "agent_0c7794edc7b4aab987152a6985"
	// maxResponseBytes はAPIレスポンスとして読み込む最大サイズ。
	maxResponseBytes = 1 << 20
)

// ErrMissingAPIKey はAPIキーが設定されていない場合のエラー。
var ErrMissingAPIKey = errors.New("missing RETELL_API_KEY")

// WebCallRequest はWeb通話作成APIへのリクエスト。
// agent_id以外の項目は値が指定された場合のみ送信し、内容は解釈せずにそのまま渡す。
type WebCallRequest struct {
	AgentID          string          `json:"agent_id"`
	AgentVersion     json.RawMessage `json:"agent_version,omitempty"`
	AgentOverride    json.RawMessage `json:"agent_override,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	DynamicVariables json.RawMessage `json:"retell_llm_dynamic_variables,omitempty"`
}

// Config はClientの設定。
type Config struct {
	APIKey         string
	Endpoint       string // 空の場合はDefaultEndpoint
	DefaultAgentID string // 空の場合はDefaultAgentID
}

// Client はWeb通話作成APIのクライアント。
type Client struct {
	httpClient     *http.Client
	logger         *slog.Logger
	apiKey         string
	endpoint       string
	defaultAgentID string
}

// NewClient はClientの新しいインスタンスを生成する。
// 本番ではSSRF防止付きのhttpClientを渡すこと。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	c := &Client{
		httpClient:     httpClient,
		logger:         logger,
		apiKey:         cfg.APIKey,
		endpoint:       cfg.Endpoint,
		defaultAgentID: cfg.DefaultAgentID,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.defaultAgentID == "" {
		c.defaultAgentID = DefaultAgentID
	}
	return c
}

// CreateWebCall はWeb通話を作成し、APIのJSONレスポンスをそのまま返す。
// APIキー未設定、通信失敗、2xx以外のステータス、JSONでない応答はエラーとなる。
// リトライは行わない。
func (c *Client) CreateWebCall(ctx context.Context, req WebCallRequest) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if req.AgentID == "" {
		req.AgentID = c.defaultAgentID
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode web call request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("web call API request failed",
			slog.String("agent_id", req.AgentID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("web call API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read web call response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("web call API returned error status",
			slog.String("agent_id", req.AgentID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(truncate(body, 512))}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("web call API returned non-JSON response")
	}

	return json.RawMessage(body), nil
}

// StatusError はAPIが2xx以外を返した場合のエラー。
type StatusError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("web call API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("web call API returned status %d: %s", e.StatusCode, e.Body)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
