package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/fieldops/adminctl/internal/client/storage"
)

// Фиксированный ключ записи: хранится ровно одна пара учетных данных
var credentialKey = []byte("saved")

// SaveCredentials stores the encrypted credential record
func (s *Storage) SaveCredentials(ctx context.Context, rec *storage.CredentialRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}

		// Сериализуем запись в JSON
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal credential record: %w", err)
		}

		if err := bucket.Put(credentialKey, data); err != nil {
			return fmt.Errorf("failed to save credential record: %w", err)
		}

		return nil
	})
}

// GetCredentials retrieves the stored credential record
func (s *Storage) GetCredentials(ctx context.Context) (*storage.CredentialRecord, error) {
	var rec *storage.CredentialRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}

		data := bucket.Get(credentialKey)
		if data == nil {
			return storage.ErrCredentialsNotFound
		}

		rec = &storage.CredentialRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("failed to unmarshal credential record: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return rec, nil
}

// DeleteCredentials removes the stored credential record.
// Идемпотентна: удаление отсутствующей записи не является ошибкой.
func (s *Storage) DeleteCredentials(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCredentials)
		if bucket == nil {
			return fmt.Errorf("credentials bucket not found")
		}

		if err := bucket.Delete(credentialKey); err != nil {
			return fmt.Errorf("failed to delete credential record: %w", err)
		}

		return nil
	})
}
