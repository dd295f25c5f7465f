package consent

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"stancesense-cloud/internal/auth"
)

// Handler serves GET/POST /api/v1/user/consent.
type Handler struct {
	service *Service
	logger  *log.Logger
}

// NewHandler constructs a consent handler.
func NewHandler(service *Service, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("consent handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, logger: logger}, nil
}

type consentRequest struct {
	Consent bool `json:"consent"`
}

// ServeHTTP reads or writes the caller's consent flag.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		consent, err := h.service.GetConsent(r.Context(), userID)
		if err != nil {
			h.logger.Printf("consent: get failed for %s: %v", userID, err)
			http.Error(w, "consent lookup error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"uid": userID, "consent": consent})
	case http.MethodPost:
		var req consentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := h.service.SetConsent(r.Context(), userID, req.Consent); err != nil {
			h.logger.Printf("consent: set failed for %s: %v", userID, err)
			http.Error(w, "consent save error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"uid": userID, "consent": req.Consent})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
