package main

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/three-plus-three/casauth/filter"
)

// SessionConfig 会话的配置
type SessionConfig struct {
	CookieName  string        `yaml:"cookie_name"`
	SecretKey   string        `yaml:"secret_key"`
	MaxInactive time.Duration `yaml:"max_inactive"`
	// Store is the path of a SQLite database. Sessions are kept in memory
	// only when it is empty.
	Store string `yaml:"store"`
}

// DbConfig 用户表所在的数据库
type DbConfig struct {
	DbType   string `yaml:"type"`
	DbURL    string `yaml:"url"`
	QuerySQL string `yaml:"query_sql"`
}

// Config 是 casdemo 的配置文件
type Config struct {
	ListenAt    string           `yaml:"listen"`
	Debug       bool             `yaml:"debug"`
	CAS         filter.Config    `yaml:"cas"`
	Session     SessionConfig    `yaml:"session"`
	Db          DbConfig         `yaml:"db"`
	ResourceIDs map[string]int64 `yaml:"resource_ids"`
}

func defaultConfig() *Config {
	return &Config{
		ListenAt: ":8080",
		ResourceIDs: map[string]int64{
			"johndoe": 123,
			"janedoe": 456,
		},
	}
}

func readConfig(filename string, config *Config) error {
	if filename == "" {
		return nil
	}
	bs, err := os.ReadFile(filename)
	if err != nil {
		return errors.New("read config '" + filename + "' fail, " + err.Error())
	}
	if err := yaml.Unmarshal(bs, config); err != nil {
		return errors.New("parse config '" + filename + "' fail, " + err.Error())
	}
	return nil
}
