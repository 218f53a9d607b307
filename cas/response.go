package cas

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Namespace is the XML namespace of CAS protocol responses.
const Namespace = "http://www.yale.edu/tp/cas"

// ErrDoctype is returned by the default decoder for documents that carry a
// DOCTYPE, i.e. external DTDs or entity declarations.
var ErrDoctype = errors.New("cas: DOCTYPE is not allowed in a CAS response")

// DecoderFactory creates the XML decoder used for untrusted CAS payloads.
type DecoderFactory func(r io.Reader) *xml.Decoder

// SafeDecoder is the default DecoderFactory. The decoder is strict, knows only
// the predefined XML entities and accepts UTF-8 input only.
func SafeDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = true
	d.Entity = nil
	d.CharsetReader = nil
	return d
}

// Principal 验证成功后 CAS 返回的用户
type Principal struct {
	User                string
	ProxyGrantingTicket string
	Attributes          map[string][]string
}

type serviceResponse struct {
	XMLName xml.Name               `xml:"serviceResponse"`
	Success *authenticationSuccess `xml:"authenticationSuccess"`
	Failure *authenticationFailure `xml:"authenticationFailure"`
}

type authenticationSuccess struct {
	User                string          `xml:"user"`
	ProxyGrantingTicket string          `xml:"proxyGrantingTicket"`
	Attributes          *attributesNode `xml:"attributes"`
}

type authenticationFailure struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type attributesNode struct {
	Values []attributeNode `xml:",any"`
}

type attributeNode struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// ParseServiceResponse decodes a CAS serviceValidate response. It returns a
// principal only for an authenticationSuccess element with a non-empty user;
// every other outcome is an *Error.
func ParseServiceResponse(r io.Reader, factory DecoderFactory) (*Principal, error) {
	if factory == nil {
		factory = SafeDecoder
	}
	d := factory(r)
	if d == nil {
		return nil, newError(ReasonParse, "", "decoder factory returned nil", nil)
	}

	start, err := rootElement(d)
	if err != nil {
		return nil, newError(ReasonParse, "", "", err)
	}
	if start.Name.Local != "serviceResponse" {
		return nil, newError(ReasonParse, "", "unexpected root element <"+start.Name.Local+">", nil)
	}
	if start.Name.Space != "" && start.Name.Space != Namespace {
		return nil, newError(ReasonParse, "", "unexpected namespace '"+start.Name.Space+"' of <serviceResponse>", nil)
	}

	var resp serviceResponse
	if err := d.DecodeElement(&resp, &start); err != nil {
		return nil, newError(ReasonParse, "", "", err)
	}

	if resp.Failure != nil {
		return nil, newError(ReasonRejected,
			strings.TrimSpace(resp.Failure.Code),
			strings.TrimSpace(resp.Failure.Message), nil)
	}
	if resp.Success == nil {
		return nil, newError(ReasonParse, "", "neither authenticationSuccess nor authenticationFailure", nil)
	}

	user := strings.TrimSpace(resp.Success.User)
	if user == "" {
		return nil, newError(ReasonNoPrincipal, "", "user is empty", nil)
	}

	principal := &Principal{
		User:                user,
		ProxyGrantingTicket: strings.TrimSpace(resp.Success.ProxyGrantingTicket),
	}
	if resp.Success.Attributes != nil && len(resp.Success.Attributes.Values) > 0 {
		principal.Attributes = map[string][]string{}
		for _, a := range resp.Success.Attributes.Values {
			principal.Attributes[a.XMLName.Local] = append(principal.Attributes[a.XMLName.Local],
				strings.TrimSpace(a.Value))
		}
	}
	return principal, nil
}

// rootElement skips the prolog and returns the first start element.
func rootElement(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return xml.StartElement{}, errors.New("document is empty")
			}
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.Directive:
			if isDoctype(t) {
				return xml.StartElement{}, ErrDoctype
			}
		case xml.StartElement:
			return t, nil
		}
	}
}

func isDoctype(d xml.Directive) bool {
	s := bytes.TrimSpace(d)
	return len(s) >= 7 && strings.EqualFold(string(s[:7]), "DOCTYPE")
}
