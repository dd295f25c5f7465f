package consent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"stancesense-cloud/internal/storage"
)

const consentDocID = "consent"

// Store is the narrow persistence contract for consent documents.
type Store interface {
	Save(ctx context.Context, collection, docID string, document any) error
	Get(ctx context.Context, collection, docID string) (json.RawMessage, error)
}

type consentDocument struct {
	Consent bool `json:"consent"`
}

// Service reads and writes the per-user external-AI consent flag. The core
// pipeline only reads it; the flag is owned by the user profile.
type Service struct {
	store Store
}

// NewService constructs a consent service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("consent: nil store")
	}
	return &Service{store: store}, nil
}

// GetConsent returns the user's consent flag, defaulting to false when the
// document is absent.
func (s *Service) GetConsent(ctx context.Context, userID string) (bool, error) {
	if s == nil || userID == "" {
		return false, nil
	}
	body, err := s.store.Get(ctx, storage.UserCollection(userID, storage.CollectionPreferences), consentDocID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	var doc consentDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, err
	}
	return doc.Consent, nil
}

// SetConsent stores the user's consent flag.
func (s *Service) SetConsent(ctx context.Context, userID string, consent bool) error {
	if s == nil {
		return errors.New("consent: nil service")
	}
	if userID == "" {
		return errors.New("consent: empty user id")
	}
	return s.store.Save(ctx, storage.UserCollection(userID, storage.CollectionPreferences), consentDocID, consentDocument{Consent: consent})
}
