package filter

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/three-plus-three/casauth/cas"
)

const (
	DefaultValidationURL = "https://localhost:8443/cas/serviceValidate"
	DefaultFailureURL    = "/failed.html"
	DefaultTicketParam   = "ticket"
	DefaultLogoutParam   = "logoutRequest"
	DefaultTimeout       = 10 * time.Second

	DefaultResourceIDAttribute = "resource_id"
	DefaultTicketAttribute     = "cas_ticket"
)

// AttributeNames 会话中保存认证信息的属性名
type AttributeNames struct {
	ResourceID string `yaml:"resource_id"`
	Ticket     string `yaml:"ticket"`
}

// Config 是 CAS 认证的配置项, 为空的字段使用缺省值
type Config struct {
	ValidationURL     string         `yaml:"validation_url"`
	FailureURL        string         `yaml:"failure_url"`
	TicketParam       string         `yaml:"ticket_param"`
	LogoutParam       string         `yaml:"logout_param"`
	Timeout           time.Duration  `yaml:"timeout"`
	DefaultResourceID int64          `yaml:"default_resource_id"`
	AttributeNames    AttributeNames `yaml:"attribute_names"`

	// ServerName 是应用对外的地址, 例如 https://app.example.org, 设置后
	// service url 的 scheme 和 host 总是取自这里
	ServerName string `yaml:"server_name"`
	// TrustForwardedHeaders 为 true 时才使用 X-Forwarded-Proto 和
	// X-Forwarded-Host, 只有在可信的反向代理后面才能打开
	TrustForwardedHeaders bool `yaml:"trust_forwarded_headers"`
}

// ReadConfig reads a YAML config file. Missing fields keep their defaults.
func ReadConfig(filename string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(bs)
}

// ParseConfig decodes a YAML document into a Config with defaults applied.
func ParseConfig(bs []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, errors.New("filter: config is invalid, " + err.Error())
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.ValidationURL = strings.TrimSpace(cfg.ValidationURL)
	if cfg.ValidationURL == "" {
		cfg.ValidationURL = DefaultValidationURL
	}
	u, err := url.Parse(cfg.ValidationURL)
	if err != nil {
		return errors.New("filter: validation_url '" + cfg.ValidationURL + "' is invalid, " + err.Error())
	}
	if !u.IsAbs() {
		return errors.New("filter: validation_url '" + cfg.ValidationURL + "' isn't absolute")
	}

	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName != "" {
		if _, err := cas.ParseServerName(cfg.ServerName); err != nil {
			return errors.New("filter: server_name is invalid, " + err.Error())
		}
	}

	if cfg.FailureURL == "" {
		cfg.FailureURL = DefaultFailureURL
	}
	if cfg.TicketParam == "" {
		cfg.TicketParam = DefaultTicketParam
	}
	if cfg.LogoutParam == "" {
		cfg.LogoutParam = DefaultLogoutParam
	}
	if cfg.Timeout < 0 {
		return errors.New("filter: timeout must be positive")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AttributeNames.ResourceID == "" {
		cfg.AttributeNames.ResourceID = DefaultResourceIDAttribute
	}
	if cfg.AttributeNames.Ticket == "" {
		cfg.AttributeNames.Ticket = DefaultTicketAttribute
	}
	if cfg.AttributeNames.ResourceID == cfg.AttributeNames.Ticket {
		return errors.New("filter: resource id and ticket attributes must differ")
	}
	return nil
}
