package cas

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewValidatorURL(t *testing.T) {
	for _, u := range []string{"", "/cas/serviceValidate", "://bad"} {
		if _, err := NewValidator(u); err == nil {
			t.Error("except error for", u)
		}
	}

	v, err := NewValidator("https://localhost:8443/cas/serviceValidate")
	if err != nil {
		t.Fatal(err)
	}
	if v.URL() != "https://localhost:8443/cas/serviceValidate" {
		t.Error("url is", v.URL())
	}
	if v.timeout != DefaultTimeout {
		t.Error("except default timeout, actual is", v.timeout)
	}
}

func TestValidateSuccess(t *testing.T) {
	var service, ticket, extra string
	hsrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		service = r.URL.Query().Get("service")
		ticket = r.URL.Query().Get("ticket")
		extra = r.URL.Query().Get("renew")
		io.WriteString(w, successXML)
	}))
	defer hsrv.Close()

	v, err := NewValidator(hsrv.URL + "/cas/serviceValidate?renew=false")
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.Validate(context.Background(), "ST-1", "http://app.example.org/hello?a=b")
	if err != nil {
		t.Fatal(err)
	}
	if p.User != "johndoe" {
		t.Error("except johndoe, actual is", p.User)
	}
	if service != "http://app.example.org/hello?a=b" {
		t.Error("service is", service)
	}
	if ticket != "ST-1" {
		t.Error("ticket is", ticket)
	}
	if extra != "false" {
		t.Error("query of validation url is lost")
	}
}

func TestValidateEmptyTicket(t *testing.T) {
	v, _ := NewValidator("http://127.0.0.1:1/cas/serviceValidate")
	_, err := v.Validate(context.Background(), "", "http://app")
	var e *Error
	if !errors.As(err, &e) || e.Reason != ReasonRejected || e.Code != "INVALID_REQUEST" {
		t.Error("except INVALID_REQUEST, actual is", err)
	}
}

func TestValidateServerError(t *testing.T) {
	hsrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer hsrv.Close()

	v, _ := NewValidator(hsrv.URL)
	_, err := v.Validate(context.Background(), "ST-1", "http://app")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("except *Error, actual is", err)
	}
	if e.Reason != ReasonServer || e.Code != "500" {
		t.Error("except server 500, actual is", e.Reason, e.Code)
	}
}

func TestValidateRejected(t *testing.T) {
	hsrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
<cas:authenticationFailure code="INVALID_TICKET">not recognized</cas:authenticationFailure></cas:serviceResponse>`)
	}))
	defer hsrv.Close()

	v, _ := NewValidator(hsrv.URL)
	_, err := v.Validate(context.Background(), "ST-1", "http://app")
	var e *Error
	if !errors.As(err, &e) || e.Reason != ReasonRejected || e.Code != "INVALID_TICKET" {
		t.Error("except INVALID_TICKET, actual is", err)
	}
}

func TestValidateUnreachable(t *testing.T) {
	hsrv := httptest.NewServer(http.NotFoundHandler())
	u := hsrv.URL
	hsrv.Close()

	v, _ := NewValidator(u)
	_, err := v.Validate(context.Background(), "ST-1", "http://app")
	if ReasonOf(err) != ReasonNetwork {
		t.Error("except network, actual is", err)
	}
}

func TestValidateTimeout(t *testing.T) {
	release := make(chan struct{})
	hsrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer hsrv.Close()
	defer close(release)

	v, _ := NewValidator(hsrv.URL, WithTimeout(100*time.Millisecond))
	started := time.Now()
	_, err := v.Validate(context.Background(), "ST-1", "http://app")
	if ReasonOf(err) != ReasonNetwork {
		t.Error("except network, actual is", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Error("validation isn't bounded by the timeout -", elapsed)
	}
}

func TestValidateCustomDecoder(t *testing.T) {
	hsrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, successXML)
	}))
	defer hsrv.Close()

	called := false
	v, _ := NewValidator(hsrv.URL, WithDecoderFactory(func(r io.Reader) *xml.Decoder {
		called = true
		return SafeDecoder(r)
	}), WithHTTPClient(&http.Client{}))
	if _, err := v.Validate(context.Background(), "ST-1", "http://app"); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("decoder factory isn't used")
	}
	v.CloseIdleConnections()
}

func TestErrorString(t *testing.T) {
	err := newError(ReasonRejected, "INVALID_TICKET", "not recognized", nil)
	if s := err.Error(); !strings.Contains(s, "rejected") || !strings.Contains(s, "INVALID_TICKET") {
		t.Error("error is", s)
	}
	if ReasonOf(errors.New("x")) != 0 {
		t.Error("except 0 for other errors")
	}
}
