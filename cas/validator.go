package cas

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one validation round trip.
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 1 << 20
)

// Validator 向 CAS 服务器验证 service ticket
type Validator struct {
	validationURL *url.URL
	client        *http.Client
	timeout       time.Duration
	decoders      DecoderFactory
	logger        *zap.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithHTTPClient replaces the HTTP client, e.g. to trust a private CA.
func WithHTTPClient(client *http.Client) ValidatorOption {
	return func(v *Validator) {
		v.client = client
	}
}

// WithTimeout sets the validation timeout. Values <= 0 keep the default.
func WithTimeout(timeout time.Duration) ValidatorOption {
	return func(v *Validator) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// WithDecoderFactory replaces the XML decoder factory.
func WithDecoderFactory(factory DecoderFactory) ValidatorOption {
	return func(v *Validator) {
		if factory != nil {
			v.decoders = factory
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator creates a validator for the serviceValidate endpoint at validationURL.
func NewValidator(validationURL string, opts ...ValidatorOption) (*Validator, error) {
	if validationURL == "" {
		return nil, errors.New("cas: validation url is empty")
	}
	u, err := url.Parse(validationURL)
	if err != nil {
		return nil, errors.New("cas: validation url is invalid - " + err.Error())
	}
	if !u.IsAbs() {
		return nil, errors.New("cas: validation url must be absolute - " + validationURL)
	}

	v := &Validator{
		validationURL: u,
		timeout:       DefaultTimeout,
		decoders:      SafeDecoder,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client == nil {
		v.client = &http.Client{Timeout: v.timeout}
	}
	return v, nil
}

// URL returns the validation endpoint.
func (v *Validator) URL() string {
	return v.validationURL.String()
}

// Validate redeems ticket for service. The call is never retried and never
// outlives the validator timeout.
func (v *Validator) Validate(ctx context.Context, ticket, service string) (*Principal, error) {
	if ticket == "" {
		return nil, newError(ReasonRejected, "INVALID_REQUEST", "ticket is empty", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	u := *v.validationURL
	query := u.Query()
	query.Set("service", service)
	query.Set("ticket", ticket)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, newError(ReasonNetwork, "", "create request", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Warn("cas server is unreachable",
			zap.String("url", v.validationURL.String()),
			zap.Error(err))
		return nil, newError(ReasonNetwork, "", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		v.logger.Warn("cas server returned an error status",
			zap.String("url", v.validationURL.String()),
			zap.Int("status", resp.StatusCode))
		return nil, newError(ReasonServer, strconv.Itoa(resp.StatusCode), resp.Status, nil)
	}

	principal, err := ParseServiceResponse(io.LimitReader(resp.Body, maxResponseSize), v.decoders)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(ReasonNetwork, "", "read response", ctx.Err())
		}
		v.logger.Info("service ticket is rejected",
			zap.String("service", service),
			zap.Error(err))
		return nil, err
	}
	return principal, nil
}

// CloseIdleConnections closes idle keep-alive connections to the CAS server.
func (v *Validator) CloseIdleConnections() {
	v.client.CloseIdleConnections()
}
