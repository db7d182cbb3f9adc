package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	client := NewURLGuard().NewSafeClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout %v, got %v", 5*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected custom Transport")
	}
}

// TestNewSafeClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewURLGuard().NewSafeClient(5 * time.Second)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewURLGuard()

	for _, u := range []string{
		"https://example.com",
		"https://cal.example.com/rivera",
		"http://brightpath.example.org/about",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Rejected(t *testing.T) {
	guard := NewURLGuard()

	for _, u := range []string{
		"",
		"not-a-url",
		"javascript:alert(1)",
		"ftp://example.com/file",
		"file:///etc/passwd",
		"http://10.0.0.1/",
		"http://172.16.0.1/",
		"http://192.168.1.100/",
		"http://127.0.0.1/",
		"http://localhost/",
		"http://169.254.169.254/latest/meta-data/",
		"http://metadata.google.internal/computeMetadata/v1/",
		"http://[::1]/",
		"http://0.0.0.0/",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", u)
			}
		})
	}
}

func TestNormalizeLink(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "空入力はそのまま", input: "  ", want: ""},
		{name: "スキームなしにはhttpsを補う", input: "www.brightpath.com", want: "https://www.brightpath.com"},
		{name: "httpsはそのまま", input: " https://cal.example.com/a ", want: "https://cal.example.com/a"},
		{name: "javascriptスキームは拒否", input: "javascript:alert(1)", wantErr: true},
		{name: "プライベートIPは拒否", input: "http://192.168.0.10/book", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guard.NormalizeLink(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeLink(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeLink(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
