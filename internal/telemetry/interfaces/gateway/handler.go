package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"stancesense-cloud/internal/auth"
	"stancesense-cloud/internal/observability/metrics"
	telemetry "stancesense-cloud/internal/telemetry/domain"
)

// Ingestor accepts a validated packet and returns the acknowledgment fields.
type Ingestor interface {
	Ingest(ctx context.Context, packet telemetry.SensorPacket, userID string) (id string, saved bool)
}

// TokenVerifier resolves a bearer credential to an opaque user ID.
type TokenVerifier func(credential string) (string, error)

// IngestHandler handles sensor packet ingestion from the device gateway.
type IngestHandler struct {
	ingestor Ingestor
	verify   TokenVerifier
	clock    Clock
	logger   *log.Logger
}

// HandlerOption configures the ingest handler.
type HandlerOption func(*IngestHandler)

// WithClock overrides the normalization clock.
func WithClock(clock Clock) HandlerOption {
	return func(h *IngestHandler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithTokenVerifier enables optional bearer attribution on ingest.
func WithTokenVerifier(verify TokenVerifier) HandlerOption {
	return func(h *IngestHandler) {
		h.verify = verify
	}
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(ingestor Ingestor, logger *log.Logger, opts ...HandlerOption) (*IngestHandler, error) {
	if ingestor == nil {
		return nil, errors.New("gateway ingest: nil ingestor")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &IngestHandler{ingestor: ingestor, clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP ingests one packet. Validation failures are reported
// synchronously with 400; an accepted packet is acknowledged before any
// scoring or alerting runs.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		metrics.ObserveIngest("error", time.Since(start))
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		h.logger.Printf("ingest: decode error: %v", err)
		metrics.ObserveIngest("error", time.Since(start))
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	packet, err := ParsePacket(Normalize(raw, h.clock))
	if err != nil {
		// Raw document logged for diagnosis; the error names the field.
		h.logger.Printf("ingest: invalid payload: %v; packet=%s", err, string(body))
		metrics.ObserveIngest("invalid", time.Since(start))
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := h.resolveUser(r)
	id, saved := h.ingestor.Ingest(r.Context(), packet, userID)
	metrics.ObserveIngest("accepted", time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "accepted",
		"id":     id,
		"saved":  saved,
		"user":   userID,
	})
}

// resolveUser prefers a bearer credential, then the gateway identity the
// ingest auth middleware attached. An unattributed packet is still accepted.
func (h *IngestHandler) resolveUser(r *http.Request) string {
	if h.verify != nil {
		if credential := r.Header.Get("Authorization"); credential != "" {
			userID, err := h.verify(credential)
			if err == nil && userID != "" {
				return userID
			}
			h.logger.Printf("ingest: invalid bearer credential, continuing unattributed: %v", err)
		}
	}
	return auth.UserIDFromContext(r.Context())
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
