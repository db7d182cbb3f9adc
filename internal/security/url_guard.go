// Package security は外部URLと自由記述テキストの安全性に関する機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は外部リンクとして受け付けないネットワーク範囲。
// safeurlのクライアントはDNS解決後のIPもDialerで検証する。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドメタデータIPを含む
	"0.0.0.0/8",
	"100.64.0.0/10",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

var blockedHostnames = []string{"localhost", "metadata.google.internal"}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// URLGuard は外部URLの静的検証と、SSRF防止付きHTTPクライアントの生成を行う。
type URLGuard struct{}

// NewURLGuard はURLGuardを生成する。
func NewURLGuard() *URLGuard {
	return &URLGuard{}
}

// NewSafeClient はプライベートIP、ループバック、リンクローカル、メタデータIPへの
// 接続を拒否するHTTPクライアントを生成する。音声通話APIの呼び出しに使用する。
func (g *URLGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はDNS解決を伴わずにURLの安全性を検証する。
func (g *URLGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip)
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// NormalizeLink はプロバイダーが入力したWebサイトや予約リンクを正規化する。
// スキームのない入力（"www.example.com"）にはhttps://を補う。
// 空入力は空文字列をそのまま返す。安全でないURLはエラーを返す。
func (g *URLGuard) NormalizeLink(raw string) (string, error) {
	link := strings.TrimSpace(raw)
	if link == "" {
		return "", nil
	}
	if !strings.Contains(link, "://") && !strings.Contains(link, ":") {
		link = "https://" + link
	}
	if err := g.ValidateURL(link); err != nil {
		return "", err
	}
	return link, nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, n := range blockedNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	for _, blocked := range blockedHostnames {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return true
		}
	}
	return false
}
