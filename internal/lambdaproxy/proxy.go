// Package lambdaproxy はAPI Gatewayのプロキシ統合イベントをhttp.Handlerで処理するアダプターを提供する。
package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// Adapter はAPIGatewayProxyRequestをhttp.Requestに変換してhandlerへ渡す。
type Adapter struct {
	handler http.Handler
}

// New はAdapterを生成する。
func New(handler http.Handler) *Adapter {
	return &Adapter{handler: handler}
}

// Handle はlambda.Startに渡すハンドラー関数。
// 変換できないイベントはエラーではなく400レスポンスとして返す。
func (a *Adapter) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toHTTPRequest(ctx, event)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"result":"error","message":"invalid request"}`,
		}, nil
	}

	w := newResponseWriter()
	a.handler.ServeHTTP(w, req)
	return w.toProxyResponse(), nil
}

func toHTTPRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	path := event.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{Path: path, RawQuery: queryString(event)}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 body: %w", err)
		}
		body = decoded
	}

	method := event.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip + ":0"
	}
	req.RequestURI = u.RequestURI()
	return req, nil
}

// queryString は複数値パラメータを優先してクエリ文字列を組み立てる。
func queryString(event events.APIGatewayProxyRequest) string {
	q := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := q[k]; !ok {
			q.Set(k, v)
		}
	}
	return q.Encode()
}

// responseWriter はレスポンスをメモリに保持するhttp.ResponseWriter。
type responseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header)}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *responseWriter) toProxyResponse() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           make(map[string]string, len(w.header)),
		MultiValueHeaders: make(map[string][]string, len(w.header)),
	}
	for k, vs := range w.header {
		resp.Headers[k] = strings.Join(vs, ", ")
		resp.MultiValueHeaders[k] = vs
	}

	body := w.body.Bytes()
	if isText(w.header.Get("Content-Type"), body) {
		resp.Body = string(body)
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(body)
		resp.IsBase64Encoded = true
	}
	return resp
}

func isText(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	switch {
	case ct == "":
		return utf8.Valid(body)
	case strings.HasPrefix(ct, "text/"), strings.Contains(ct, "json"), strings.Contains(ct, "xml"),
		strings.Contains(ct, "javascript"):
		return true
	default:
		return false
	}
}
