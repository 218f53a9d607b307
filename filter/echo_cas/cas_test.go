package echo_cas

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo"
	"golang.org/x/net/publicsuffix"

	"github.com/three-plus-three/casauth/filter"
	"github.com/three-plus-three/casauth/internal/castest"
	"github.com/three-plus-three/casauth/resolver"
	"github.com/three-plus-three/casauth/session"
)

func TestEchoCAS(t *testing.T) {
	casServer := castest.NewServer(map[string]string{"johndoe": "johndoe"}, nil)
	defer casServer.Close()

	sessions := session.NewManager(nil)
	auth, err := filter.New(&filter.Options{
		Config:   filter.Config{ValidationURL: casServer.ValidationURL()},
		Resolver: resolver.NewMap(map[string]int64{"johndoe": 123}),
		Sessions: sessions,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sessions.Close()

	e := echo.New()
	e.Use(CAS(auth))
	e.GET("/hello", func(c echo.Context) error {
		return c.String(http.StatusOK, strconv.FormatInt(ResourceID(c), 10))
	})
	e.GET("/failed.html", func(c echo.Context) error {
		return c.String(http.StatusOK, "failed")
	})
	e.GET("/logout", SessionLogout(sessions, "/hello"))
	e.POST("/cas/logout", LogoutRequestHandler(auth))

	hsrv := httptest.NewServer(e)
	defer hsrv.Close()

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	client := &http.Client{Jar: jar}
	get := func(u string) string {
		resp, err := client.Get(u)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		bs, _ := io.ReadAll(resp.Body)
		return string(bs)
	}

	if body := get(hsrv.URL + "/hello"); body != "0" {
		t.Error("except 0, actual is", body)
	}
	if body := get(casServer.LoginURL(hsrv.URL+"/hello") + "&username=johndoe&password=johndoe"); body != "123" {
		t.Error("except 123, actual is", body)
	}

	ticket := casServer.Tickets("johndoe")[0].Ticket
	if err := casServer.SendLogoutRequest(context.Background(), hsrv.URL+"/cas/logout", ticket); err != nil {
		t.Fatal(err)
	}
	if body := get(hsrv.URL + "/hello"); body != "0" {
		t.Error("except 0 after cas logout, actual is", body)
	}

	if body := get(casServer.LoginURL(hsrv.URL+"/hello") + "&username=johndoe&password=johndoe"); body != "123" {
		t.Error("except 123, actual is", body)
	}
	if body := get(hsrv.URL + "/logout"); body != "0" {
		t.Error("except 0 after local logout, actual is", body)
	}
}
