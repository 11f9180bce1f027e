package security

import (
	"strings"
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicHTTP(t *testing.T) {
	g := NewSSRFGuard()

	urls := []string{
		"http://example.com/live/stream.m3u8",
		"https://cdn.example.net:8443/tv/1.m3u8",
		"http://93.184.216.34:8080/stream",
	}
	for _, u := range urls {
		if err := g.ValidateURL(u); err != nil {
			t.Errorf("公開URLは許可されるべき: %s: %v", u, err)
		}
	}
}

func TestValidateURL_BlocksPrivateIP(t *testing.T) {
	g := NewSSRFGuard()

	urls := []string{
		"http://10.0.0.1/stream.m3u8",
		"http://172.16.1.1/stream.m3u8",
		"http://192.168.1.100:8080/stream.m3u8",
		"http://127.0.0.1/stream.m3u8",
		"http://169.254.169.254/latest/meta-data/",
	}
	for _, u := range urls {
		if err := g.ValidateURL(u); err == nil {
			t.Errorf("プライベートIPはブロックされるべき: %s", u)
		}
	}
}

func TestValidateURL_BlocksLocalhost(t *testing.T) {
	g := NewSSRFGuard()

	if err := g.ValidateURL("http://localhost:8080/stream"); err == nil {
		t.Error("localhostはブロックされるべき")
	}
}

func TestValidateURL_RejectsDisallowedScheme(t *testing.T) {
	g := NewSSRFGuard()

	urls := []string{
		"rtmp://example.com/live",
		"file:///etc/passwd",
		"ftp://example.com/playlist.m3u",
	}
	for _, u := range urls {
		err := g.ValidateURL(u)
		if err == nil {
			t.Errorf("http/https以外のスキームは拒否されるべき: %s", u)
			continue
		}
		if !strings.Contains(err.Error(), "disallowed scheme") {
			t.Errorf("スキームエラーを返すべき: %s: %v", u, err)
		}
	}
}

func TestValidateURL_RejectsEmptyURL(t *testing.T) {
	g := NewSSRFGuard()

	if err := g.ValidateURL(""); err == nil {
		t.Error("空URLは拒否されるべき")
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewSSRFGuard()

	client := g.NewSafeClient(3 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient は nil を返してはならない")
	}
}
