package session

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"net/http"
	"strings"
)

var (
	ErrCookieNotFound = errors.New("session cookie isn't found")
	ErrCookieEmpty    = errors.New("session cookie is empty")
	ErrCookieInvalid  = errors.New("session cookie has invalid value")
	ErrSignature      = errors.New("session cookie signature failed")
)

// Sign a given string with the configured secret key.
// If no secret key is set, returns the empty string.
func Sign(message string, h func() hash.Hash, secretKey []byte) string {
	if len(secretKey) == 0 {
		return ""
	}
	mac := hmac.New(h, secretKey)
	io.WriteString(mac, message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify returns true if the given signature is correct for the given message.
// e.g. it matches what we generate with Sign()
func Verify(message, sig string, h func() hash.Hash, secretKey []byte) bool {
	return hmac.Equal([]byte(sig), []byte(Sign(message, h, secretKey)))
}

// EncodeID renders the cookie value "<signature>-<session id>".
func EncodeID(id string, h func() hash.Hash, secretKey []byte) string {
	return Sign(id, h, secretKey) + "-" + id
}

// DecodeID verifies a cookie value produced by EncodeID and returns the session id.
func DecodeID(value string, h func() hash.Hash, secretKey []byte) (string, error) {
	if value == "" {
		return "", ErrCookieEmpty
	}

	// Separate the data from the signature.
	hyphen := strings.Index(value, "-")
	if hyphen == -1 || hyphen >= len(value)-1 {
		return "", ErrCookieInvalid
	}
	id := value[hyphen+1:]
	if !Verify(id, value[:hyphen], h, secretKey) {
		return "", ErrSignature
	}
	return id, nil
}

func idFromCookie(req *http.Request, name string, h func() hash.Hash, secretKey []byte) (string, error) {
	cookie, err := req.Cookie(name)
	if err != nil {
		if err == http.ErrNoCookie {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return DecodeID(cookie.Value, h, secretKey)
}
