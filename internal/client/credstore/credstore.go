// Package credstore реализует зашифрованное хранилище учетных данных
// для автологина. Ровно одна пара login/password шифруется ключом,
// выведенным из отпечатка устройства и случайной соли, и сохраняется
// с ограниченным сроком жизни.
//
// Правило обработки ошибок: fail silent, fail safe. Любой сбой
// (недоступное хранилище, поврежденная запись, другой отпечаток, таймаут)
// означает "учетные данные не сохранены" и никогда не прерывает
// загрузку приложения.
package credstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fieldops/adminctl/internal/client/storage"
	"github.com/fieldops/adminctl/internal/crypto"
	"github.com/fieldops/adminctl/internal/fingerprint"
)

const (
	// DefaultTTL - срок жизни записи учетных данных
	DefaultTTL = 90 * 24 * time.Hour
	// DefaultOpTimeout - предел ожидания одной операции хранилища
	DefaultOpTimeout = 3 * time.Second
)

// Credentials представляет расшифрованную пару учетных данных
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Store реализует операции над зашифрованной записью учетных данных
type Store struct {
	storage     storage.CredentialStorage
	logger      *slog.Logger
	fingerprint func() string
	now         func() time.Time
	ttl         time.Duration
	opTimeout   time.Duration
}

// Option настраивает Store
type Option func(*Store)

// WithTTL задает срок жизни записи
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithOpTimeout задает предел ожидания операций хранилища
func WithOpTimeout(timeout time.Duration) Option {
	return func(s *Store) { s.opTimeout = timeout }
}

// WithFingerprintFunc подменяет источник отпечатка устройства (для тестов)
func WithFingerprintFunc(fn func() string) Option {
	return func(s *Store) { s.fingerprint = fn }
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New создает Store поверх хранилища записей
func New(stg storage.CredentialStorage, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		storage:     stg,
		logger:      logger,
		fingerprint: fingerprint.Collect,
		now:         time.Now,
		ttl:         DefaultTTL,
		opTimeout:   DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save шифрует и сохраняет пару учетных данных.
// Генерирует новые соль и IV, выводит ключ из текущего отпечатка
// устройства, шифрует JSON пары и записывает запись с expiresAt.
// Любой сбой только логируется: операция деградирует до
// "учетные данные не запомнены".
func (s *Store) Save(ctx context.Context, login, password string) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		s.logger.Warn("credstore: failed to generate salt", "error", err)
		return
	}

	key, err := crypto.DeriveKey(s.fingerprint(), salt)
	if err != nil {
		s.logger.Warn("credstore: failed to derive key", "error", err)
		return
	}

	payload, err := json.Marshal(Credentials{Login: login, Password: password})
	if err != nil {
		s.logger.Warn("credstore: failed to marshal credentials", "error", err)
		return
	}

	ciphertext, nonce, err := crypto.Encrypt(payload, key)
	if err != nil {
		s.logger.Warn("credstore: failed to encrypt credentials", "error", err)
		return
	}

	rec := &storage.CredentialRecord{
		EncryptedPayload: base64.StdEncoding.EncodeToString(ciphertext),
		IV:               base64.StdEncoding.EncodeToString(nonce),
		Salt:             base64.StdEncoding.EncodeToString(salt),
		ExpiresAt:        s.now().Add(s.ttl).Unix(),
	}

	err = s.withTimeout(ctx, func(opCtx context.Context) error {
		return s.storage.SaveCredentials(opCtx, rec)
	})
	if err != nil {
		s.logger.Warn("credstore: failed to save credential record", "error", err)
	}
}

// Load читает и расшифровывает сохраненную пару.
// Возвращает nil ("нет учетных данных") если записи нет, срок истек,
// отпечаток устройства изменился или запись повреждена.
// Истекшая запись не удаляется - срок проверяется лениво при чтении.
func (s *Store) Load(ctx context.Context) *Credentials {
	var rec *storage.CredentialRecord
	err := s.withTimeout(ctx, func(opCtx context.Context) error {
		var getErr error
		rec, getErr = s.storage.GetCredentials(opCtx)
		return getErr
	})
	if err != nil {
		if !errors.Is(err, storage.ErrCredentialsNotFound) {
			s.logger.Debug("credstore: failed to read credential record", "error", err)
		}
		return nil
	}

	if s.now().Unix() > rec.ExpiresAt {
		s.logger.Debug("credstore: credential record expired")
		return nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(rec.EncryptedPayload)
	if err != nil {
		s.logger.Debug("credstore: corrupted payload encoding", "error", err)
		return nil
	}
	nonce, err := base64.StdEncoding.DecodeString(rec.IV)
	if err != nil {
		s.logger.Debug("credstore: corrupted iv encoding", "error", err)
		return nil
	}
	salt, err := base64.StdEncoding.DecodeString(rec.Salt)
	if err != nil {
		s.logger.Debug("credstore: corrupted salt encoding", "error", err)
		return nil
	}

	// Ключ выводится из текущего отпечатка: запись с другого устройства
	// (или после смены отпечатка) не расшифруется
	key, err := crypto.DeriveKey(s.fingerprint(), salt)
	if err != nil {
		s.logger.Debug("credstore: failed to derive key", "error", err)
		return nil
	}

	plaintext, err := crypto.Decrypt(ciphertext, nonce, key)
	if err != nil {
		s.logger.Debug("credstore: failed to decrypt credential record", "error", err)
		return nil
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		s.logger.Debug("credstore: corrupted credential payload", "error", err)
		return nil
	}

	return &creds
}

// Clear удаляет сохраненную запись. Идемпотентна и не возвращает ошибок.
func (s *Store) Clear(ctx context.Context) {
	err := s.withTimeout(ctx, func(opCtx context.Context) error {
		return s.storage.DeleteCredentials(opCtx)
	})
	if err != nil {
		s.logger.Warn("credstore: failed to delete credential record", "error", err)
	}
}

// Exists сообщает, есть ли расшифровываемая непросроченная запись
func (s *Store) Exists(ctx context.Context) bool {
	return s.Load(ctx) != nil
}

// withTimeout выполняет операцию хранилища с жестким пределом ожидания.
// Зависшее хранилище не должно блокировать цепочку bootstrap: по истечении
// таймаута операция считается неудавшейся, горутина доживает в фоне.
func (s *Store) withTimeout(ctx context.Context, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(opCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-opCtx.Done():
		return opCtx.Err()
	}
}
