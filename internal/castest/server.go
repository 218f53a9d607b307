// Package castest is a minimal CAS server for tests: it logs users in,
// validates service tickets with the CAS 2.0 protocol and sends single
// logout requests to services.
package castest

import (
	"context"
	"crypto/subtle"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/three-plus-three/casauth/cas"
)

const (
	LoginPath    = "/cas/login"
	ValidatePath = "/cas/serviceValidate"
)

// Server 是一个用于测试的 CAS 服务器
type Server struct {
	*httptest.Server

	tickets *tickets
	client  *http.Client
	logger  *zap.Logger

	mutex       sync.Mutex
	passwords   map[string]string
	attributes  map[string]map[string]string
	validations int
}

// NewServer starts a CAS server that knows the given username/password pairs.
func NewServer(passwords map[string]string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	secret := []byte(uuid.NewString())
	srv := &Server{
		tickets:    newTickets(secret, 0),
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		passwords:  map[string]string{},
		attributes: map[string]map[string]string{},
	}
	for k, v := range passwords {
		srv.passwords[k] = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, srv.login)
	mux.HandleFunc(ValidatePath, srv.serviceValidate)
	srv.Server = httptest.NewServer(mux)
	return srv
}

// AddUser adds a user. attributes are returned on successful validation.
func (srv *Server) AddUser(username, password string, attributes map[string]string) {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()
	srv.passwords[username] = password
	if len(attributes) > 0 {
		srv.attributes[username] = attributes
	}
}

func (srv *Server) ValidationURL() string {
	return srv.URL + ValidatePath
}

// LoginURL returns the login url for service.
func (srv *Server) LoginURL(service string) string {
	return srv.URL + LoginPath + "?service=" + url.QueryEscape(service)
}

// Validations returns how many validation requests have been served.
func (srv *Server) Validations() int {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()
	return srv.validations
}

// IssueTicket issues a service ticket without a login round trip.
func (srv *Server) IssueTicket(username, service string) (string, error) {
	ticket, err := srv.tickets.issue(username, service)
	if err != nil {
		return "", err
	}
	return ticket.Ticket, nil
}

// Tickets returns the tickets issued to username.
func (srv *Server) Tickets(username string) []Ticket {
	return srv.tickets.byUser(username)
}

func (srv *Server) login(w http.ResponseWriter, r *http.Request) {
	service := r.FormValue("service")
	if service == "" {
		http.Error(w, "service is missing", http.StatusBadRequest)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	srv.mutex.Lock()
	excepted, ok := srv.passwords[username]
	srv.mutex.Unlock()
	if !ok || subtle.ConstantTimeCompare([]byte(excepted), []byte(password)) != 1 {
		srv.logger.Info("login fail", zap.String("username", username))
		http.Error(w, "username or password is incorrect", http.StatusUnauthorized)
		return
	}

	ticket, err := srv.tickets.issue(username, service)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	redirectURL := service
	if strings.Contains(service, "?") {
		redirectURL += "&ticket=" + url.QueryEscape(ticket.Ticket)
	} else {
		redirectURL += "?ticket=" + url.QueryEscape(ticket.Ticket)
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (srv *Server) serviceValidate(w http.ResponseWriter, r *http.Request) {
	srv.mutex.Lock()
	srv.validations++
	srv.mutex.Unlock()

	service := r.URL.Query().Get("service")
	ticketString := r.URL.Query().Get("ticket")

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if service == "" || ticketString == "" {
		writeFailure(w, "INVALID_REQUEST", "service and ticket are required")
		return
	}

	ticket, err := srv.tickets.redeem(ticketString)
	if err != nil {
		writeFailure(w, "INVALID_TICKET", "Ticket "+ticketString+" not recognized - "+err.Error())
		return
	}
	if ticket.Service != service {
		writeFailure(w, "INVALID_SERVICE", "Ticket "+ticketString+" does not match supplied service")
		return
	}

	srv.mutex.Lock()
	attributes := srv.attributes[ticket.Username]
	srv.mutex.Unlock()
	writeSuccess(w, ticket.Username, attributes)
}

// Logout sends the single logout request for ticket to the service the
// ticket was issued for.
func (srv *Server) Logout(ctx context.Context, ticketString string) error {
	ticket, ok := srv.tickets.get(ticketString)
	if !ok {
		return errTicketUnknown
	}
	return srv.SendLogoutRequest(ctx, ticket.Service, ticketString)
}

// LogoutUser sends logout requests for every ticket issued to username.
func (srv *Server) LogoutUser(ctx context.Context, username string) error {
	var lastErr error
	for _, ticket := range srv.tickets.byUser(username) {
		if err := srv.SendLogoutRequest(ctx, ticket.Service, ticket.Ticket); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SendLogoutRequest posts a logout request for ticket to serviceURL.
func (srv *Server) SendLogoutRequest(ctx context.Context, serviceURL, ticket string) error {
	payload := cas.NewLogoutRequest("LR-"+uuid.NewString(), ticket, time.Now())
	form := url.Values{"logoutRequest": {payload}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := srv.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("logout request is refused - " + resp.Status)
	}
	return nil
}

func writeFailure(w http.ResponseWriter, code, message string) {
	var sb strings.Builder
	sb.WriteString(`<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">` + "\n")
	sb.WriteString(`  <cas:authenticationFailure code="` + code + `">`)
	xml.EscapeText(&sb, []byte(message))
	sb.WriteString("</cas:authenticationFailure>\n</cas:serviceResponse>\n")
	w.Write([]byte(sb.String()))
}

func writeSuccess(w http.ResponseWriter, username string, attributes map[string]string) {
	var sb strings.Builder
	sb.WriteString(`<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">` + "\n")
	sb.WriteString("  <cas:authenticationSuccess>\n    <cas:user>")
	xml.EscapeText(&sb, []byte(username))
	sb.WriteString("</cas:user>\n")
	if len(attributes) > 0 {
		sb.WriteString("    <cas:attributes>\n")
		for k, v := range attributes {
			sb.WriteString("      <cas:" + k + ">")
			xml.EscapeText(&sb, []byte(v))
			sb.WriteString("</cas:" + k + ">\n")
		}
		sb.WriteString("    </cas:attributes>\n")
	}
	sb.WriteString("  </cas:authenticationSuccess>\n</cas:serviceResponse>\n")
	w.Write([]byte(sb.String()))
}
