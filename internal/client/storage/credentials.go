package storage

import "context"

// CredentialRecord представляет зашифрованную запись учетных данных в хранилище.
// Все бинарные поля кодируются в base64. Ключ шифрования в записи отсутствует:
// он каждый раз заново выводится из отпечатка устройства и соли.
type CredentialRecord struct {
	// EncryptedPayload - шифротекст JSON {login, password} (base64)
	EncryptedPayload string `json:"encryptedPayload"`
	// IV - случайный nonce AES-GCM этой записи (base64)
	IV string `json:"iv"`
	// Salt - соль деривации ключа этой записи (base64)
	Salt string `json:"salt"`
	// ExpiresAt - unix-время, после которого запись считается отсутствующей
	ExpiresAt int64 `json:"expiresAt"`
}

// CredentialStorage defines the lowest storage layer for the saved
// credential record. It works with raw encrypted data and doesn't perform
// any encryption/decryption itself.
type CredentialStorage interface {
	// SaveCredentials stores the record as-is, replacing any previous one
	SaveCredentials(ctx context.Context, rec *CredentialRecord) error

	// GetCredentials retrieves the stored record.
	// Returns ErrCredentialsNotFound if nothing is stored.
	GetCredentials(ctx context.Context) (*CredentialRecord, error)

	// DeleteCredentials removes the stored record.
	// Deleting when nothing is stored is not an error.
	DeleteCredentials(ctx context.Context) error
}
