package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры PBKDF2 для деривации ключа шифрования учетных данных
const (
	// PBKDF2Iterations - количество итераций PBKDF2-SHA256
	PBKDF2Iterations = 100_000
	// SaltSize - размер соли в байтах
	SaltSize = 32
)

// GenerateSalt генерирует криптографически случайную соль указанного размера
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey выводит 256-битный симметричный ключ из секретного материала
// (fingerprint устройства) и соли через PBKDF2-SHA256.
// Детерминированная: одинаковые material+salt всегда дают одинаковый ключ.
func DeriveKey(material string, salt []byte) ([]byte, error) {
	if material == "" {
		return nil, fmt.Errorf("key material cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	return pbkdf2.Key([]byte(material), salt, PBKDF2Iterations, KeySize, sha256.New), nil
}
