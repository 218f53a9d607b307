package cas

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLogoutRequestRoundTrip(t *testing.T) {
	payload := NewLogoutRequest("LR-1", "ST-1856339-aA5Yuvrxzpv8Tau1cYQ7", time.Now())
	req, err := ParseLogoutRequest(payload, nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.ID != "LR-1" {
		t.Error("except LR-1, actual is", req.ID)
	}
	if req.SessionIndex != "ST-1856339-aA5Yuvrxzpv8Tau1cYQ7" {
		t.Error("except ticket, actual is", req.SessionIndex)
	}
	if req.NameID != "@NOT_USED@" {
		t.Error("NameID is", req.NameID)
	}
}

func TestParseLogoutRequestFromCAS(t *testing.T) {
	payload := `<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"
     ID="LR-7-xcBfsUpZF" Version="2.0" IssueInstant="2018-03-04T10:00:00Z">
    <saml:NameID xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion">johndoe</saml:NameID>
    <samlp:SessionIndex> ST-7-abc </samlp:SessionIndex>
</samlp:LogoutRequest>`

	req, err := ParseLogoutRequest(payload, SafeDecoder)
	if err != nil {
		t.Fatal(err)
	}
	if req.SessionIndex != "ST-7-abc" {
		t.Error("except ST-7-abc, actual is", req.SessionIndex)
	}
	if req.NameID != "johndoe" {
		t.Error("except johndoe, actual is", req.NameID)
	}
}

func TestParseLogoutRequestInvalid(t *testing.T) {
	for _, payload := range []string{
		"",
		"garbage",
		`<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" ID="1"></samlp:LogoutRequest>`,
		`<other><SessionIndex>ST-1</SessionIndex></other>`,
		`<!DOCTYPE x [<!ENTITY t "ST-1">]><LogoutRequest><SessionIndex>&t;</SessionIndex></LogoutRequest>`,
	} {
		if req, err := ParseLogoutRequest(payload, nil); err == nil {
			t.Error("except error for", payload, ", actual is", req)
		}
	}

	_, err := ParseLogoutRequest(`<LogoutRequest><SessionIndex> </SessionIndex></LogoutRequest>`, nil)
	if err != ErrNoSessionIndex {
		t.Error("except ErrNoSessionIndex, actual is", err)
	}
}

func TestServiceURL(t *testing.T) {
	for _, test := range []struct {
		target   string
		tls      bool
		headers  map[string]string
		excepted string
	}{
		{"http://app.example.org/hello?ticket=ST-1", false, nil, "http://app.example.org/hello"},
		{"http://app.example.org/hello?a=1&ticket=ST-1&b=2", false, nil, "http://app.example.org/hello?a=1&b=2"},
		{"http://app.example.org/hello?b=2&a=1", false, nil, "http://app.example.org/hello?b=2&a=1"},
		{"https://app.example.org:8443/a%2Fb?ticket=ST-1", true, nil, "https://app.example.org:8443/a%2Fb"},
		{"http://10.0.0.1/hello?ticket=ST-1", false, map[string]string{
			HeaderXForwardedProto: "https",
			HeaderXForwardedHost:  "evil.example.org",
		}, "http://10.0.0.1/hello"},
	} {
		req := httptest.NewRequest("GET", test.target, nil)
		if !test.tls {
			req.TLS = nil
		}
		for k, v := range test.headers {
			req.Header.Set(k, v)
		}
		if actual := ServiceURL(req, "ticket"); actual != test.excepted {
			t.Error("except", test.excepted, ", actual is", actual)
		}
	}
}

func TestServiceURLBehindProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "http://10.0.0.1/hello?ticket=ST-1", nil)
	req.Header.Set(HeaderXForwardedProto, "https")
	req.Header.Set(HeaderXForwardedHost, "app.example.org, proxy.local")

	trusted := &Service{TicketParam: "ticket", TrustForwarded: true}
	if actual := trusted.URL(req); actual != "https://app.example.org/hello" {
		t.Error("except https://app.example.org/hello, actual is", actual)
	}

	req.Header.Set(HeaderXForwardedProto, "javascript")
	if actual := trusted.URL(req); actual != "http://app.example.org/hello" {
		t.Error("except http://app.example.org/hello, actual is", actual)
	}

	base, err := ParseServerName("https://app.example.org:8443")
	if err != nil {
		t.Fatal(err)
	}
	fixed := &Service{TicketParam: "ticket", Base: base, TrustForwarded: true}
	req.Header.Set(HeaderXForwardedHost, "evil.example.org")
	if actual := fixed.URL(req); actual != "https://app.example.org:8443/hello" {
		t.Error("except https://app.example.org:8443/hello, actual is", actual)
	}
}

func TestParseServerName(t *testing.T) {
	for _, text := range []string{
		"https://app.example.org",
		"http://app.example.org:8080/",
	} {
		if _, err := ParseServerName(text); err != nil {
			t.Error(text, err)
		}
	}
	for _, text := range []string{
		"app.example.org",
		"ftp://app.example.org",
		"https://",
		"https://app.example.org/prefix",
		"https://app.example.org/?a=1",
	} {
		if _, err := ParseServerName(text); err == nil {
			t.Error("except error for", text)
		}
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "http://app.example.org/", nil)
	req.RemoteAddr = "10.0.0.2:4567"
	if ip := RealIP(req); ip != "10.0.0.2" {
		t.Error("except 10.0.0.2, actual is", ip)
	}
	req.Header.Set(HeaderXRealIP, "192.168.1.1")
	if ip := RealIP(req); ip != "192.168.1.1" {
		t.Error("except 192.168.1.1, actual is", ip)
	}
	req.Header.Set(HeaderXForwardedFor, "172.16.0.1, 10.0.0.1")
	if ip := RealIP(req); ip != "172.16.0.1" {
		t.Error("except 172.16.0.1, actual is", ip)
	}
}
