// Package config загружает конфигурацию adminctl из переменных окружения.
//
// Используется библиотека github.com/caarlos0/env. Файл .env (если есть)
// подхватывается в main через godotenv до разбора окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config описывает конфигурацию консоли
type Config struct {
	// ServerURL - адрес удаленного FieldOps API
	ServerURL string `env:"FIELDOPS_SERVER_URL" envDefault:"http://localhost:8080"`

	// CredentialsDB - путь к bbolt базе с зашифрованными учетными данными
	CredentialsDB string `env:"ADMINCTL_CREDENTIALS_DB" envDefault:"adminctl-credentials.db"`

	// StateDB - путь к sqlite базе с состоянием сессии
	StateDB string `env:"ADMINCTL_STATE_DB" envDefault:"adminctl-state.db"`

	// ListenAddr - адрес локального HTTP-шлюза (команда serve)
	ListenAddr string `env:"ADMINCTL_LISTEN_ADDR" envDefault:"127.0.0.1:8433"`

	// LogLevel - уровень логирования: debug, info, warn, error
	LogLevel string `env:"ADMINCTL_LOG_LEVEL" envDefault:"info"`

	// BootstrapTimeout - верхняя граница всей цепочки восстановления сессии
	BootstrapTimeout time.Duration `env:"ADMINCTL_BOOTSTRAP_TIMEOUT" envDefault:"10s"`

	// ProfileTimeout - таймаут запроса "who am I" в варианте шлюза
	ProfileTimeout time.Duration `env:"ADMINCTL_PROFILE_TIMEOUT" envDefault:"5s"`

	// FastProfileTimeout - короткий таймаут "who am I" в интерактивном варианте
	FastProfileTimeout time.Duration `env:"ADMINCTL_FAST_PROFILE_TIMEOUT" envDefault:"2s"`

	// StorageTimeout - таймаут операций локальных хранилищ
	StorageTimeout time.Duration `env:"ADMINCTL_STORAGE_TIMEOUT" envDefault:"3s"`

	// CredentialTTL - срок жизни сохраненных учетных данных
	CredentialTTL time.Duration `env:"ADMINCTL_CREDENTIAL_TTL" envDefault:"2160h"`

	// MaxLoginAttempts - число подряд неудачных логинов до блокировки
	MaxLoginAttempts int `env:"ADMINCTL_MAX_LOGIN_ATTEMPTS" envDefault:"10"`

	// LoginCooldown - длительность блокировки после исчерпания попыток
	LoginCooldown time.Duration `env:"ADMINCTL_LOGIN_COOLDOWN" envDefault:"5m"`
}

// Load разбирает окружение и применяет guardrails
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize приводит значения к безопасным границам.
// Нулевые и отрицательные таймауты заменяются значениями по умолчанию:
// цепочка bootstrap обязана завершаться за конечное время.
func (c *Config) Sanitize() {
	if c.BootstrapTimeout <= 0 {
		c.BootstrapTimeout = 10 * time.Second
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = 5 * time.Second
	}
	if c.FastProfileTimeout <= 0 {
		c.FastProfileTimeout = 2 * time.Second
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = 3 * time.Second
	}
	if c.CredentialTTL <= 0 {
		c.CredentialTTL = 90 * 24 * time.Hour
	}
	if c.MaxLoginAttempts <= 0 {
		c.MaxLoginAttempts = 10
	}
	if c.LoginCooldown <= 0 {
		c.LoginCooldown = 5 * time.Minute
	}
}
