package cas

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"time"
)

// ErrNoSessionIndex is returned for a logout request without a ticket.
var ErrNoSessionIndex = errors.New("cas: logout request has no SessionIndex")

// LogoutRequest is the SAML LogoutRequest the CAS server posts to services
// (single logout). SessionIndex carries the service ticket issued at login.
type LogoutRequest struct {
	ID           string
	NameID       string
	SessionIndex string
}

type logoutRequestNode struct {
	XMLName      xml.Name `xml:"LogoutRequest"`
	ID           string   `xml:"ID,attr"`
	NameID       string   `xml:"NameID"`
	SessionIndex string   `xml:"SessionIndex"`
}

// ParseLogoutRequest decodes the payload of the logoutRequest form value.
func ParseLogoutRequest(payload string, factory DecoderFactory) (*LogoutRequest, error) {
	if factory == nil {
		factory = SafeDecoder
	}
	d := factory(strings.NewReader(payload))
	if d == nil {
		return nil, errors.New("cas: decoder factory returned nil")
	}

	start, err := rootElement(d)
	if err != nil {
		return nil, errors.New("cas: invalid logout request - " + err.Error())
	}
	if start.Name.Local != "LogoutRequest" {
		return nil, errors.New("cas: unexpected root element <" + start.Name.Local + "> in logout request")
	}

	var node logoutRequestNode
	if err := d.DecodeElement(&node, &start); err != nil {
		return nil, errors.New("cas: invalid logout request - " + err.Error())
	}
	ticket := strings.TrimSpace(node.SessionIndex)
	if ticket == "" {
		return nil, ErrNoSessionIndex
	}
	return &LogoutRequest{
		ID:           node.ID,
		NameID:       strings.TrimSpace(node.NameID),
		SessionIndex: ticket,
	}, nil
}

// NewLogoutRequest renders the logout request a CAS server sends for ticket.
func NewLogoutRequest(id, ticket string, issuedAt time.Time) string {
	var buf bytes.Buffer
	buf.WriteString(`<samlp:LogoutRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion" ID="`)
	xml.EscapeText(&buf, []byte(id))
	buf.WriteString(`" Version="2.0" IssueInstant="`)
	buf.WriteString(issuedAt.UTC().Format(time.RFC3339))
	buf.WriteString(`"><saml:NameID>@NOT_USED@</saml:NameID><samlp:SessionIndex>`)
	xml.EscapeText(&buf, []byte(ticket))
	buf.WriteString(`</samlp:SessionIndex></samlp:LogoutRequest>`)
	return buf.String()
}
