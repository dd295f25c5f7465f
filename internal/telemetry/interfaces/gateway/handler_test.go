package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"stancesense-cloud/internal/auth"
	telemetry "stancesense-cloud/internal/telemetry/domain"
)

type stubIngestor struct {
	lastPacket telemetry.SensorPacket
	lastUser   string
	id         string
	saved      bool
}

func (s *stubIngestor) Ingest(_ context.Context, packet telemetry.SensorPacket, userID string) (string, bool) {
	s.lastPacket = packet
	s.lastUser = userID
	return s.id, s.saved
}

func handlerLogger() *log.Logger {
	return log.New(os.Stdout, "", 0)
}

func validBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"timestamp": "08:45",
		"safety": map[string]any{
			"fall_detected": "no",
			"accel_x_g":     0.1,
			"accel_y_g":     0.0,
			"accel_z_g":     1.0,
		},
		"tremor": map[string]any{
			"frequency_hz":    4.0,
			"amplitude_g":     10.0,
			"tremor_detected": "yes",
		},
		"rigidity": map[string]any{
			"emg_wrist": 3.0,
			"emg_arm":   2.0,
			"rigid":     false,
		},
	})
	return body
}

func TestIngestAcceptsNormalizedPacket(t *testing.T) {
	ingestor := &stubIngestor{id: "doc-1", saved: true}
	clock := fixedClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	handler, err := NewIngestHandler(ingestor, handlerLogger(), WithClock(clock))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader(validBody()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var ack map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack["status"] != "accepted" || ack["id"] != "doc-1" || ack["saved"] != true {
		t.Fatalf("unexpected ack %v", ack)
	}

	if !ingestor.lastPacket.Tremor.TremorDetected {
		t.Fatal("expected string boolean normalized to true")
	}
	if ingestor.lastPacket.Timestamp != "2026-03-14T08:45:00Z" {
		t.Fatalf("expected expanded timestamp, got %s", ingestor.lastPacket.Timestamp)
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	ingestor := &stubIngestor{}
	handler, err := NewIngestHandler(ingestor, handlerLogger())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := []byte(`{"timestamp": "2026-03-14T08:45:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if ingestor.lastPacket.Timestamp != "" {
		t.Fatal("invalid payload must never reach the ingestor")
	}
}

func TestIngestRejectsNonPost(t *testing.T) {
	handler, err := NewIngestHandler(&stubIngestor{}, handlerLogger())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ingest/data", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestIngestBearerAttribution(t *testing.T) {
	ingestor := &stubIngestor{id: "doc-1"}
	handler, err := NewIngestHandler(ingestor, handlerLogger(), WithTokenVerifier(func(credential string) (string, error) {
		if credential == "Bearer good" {
			return "user-7", nil
		}
		return "", errors.New("bad credential")
	}))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader(validBody()))
	req.Header.Set("Authorization", "Bearer good")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if ingestor.lastUser != "user-7" {
		t.Fatalf("expected bearer attribution, got %q", ingestor.lastUser)
	}
}

func TestIngestBadBearerFallsBackToContext(t *testing.T) {
	ingestor := &stubIngestor{id: "doc-1"}
	handler, err := NewIngestHandler(ingestor, handlerLogger(), WithTokenVerifier(func(string) (string, error) {
		return "", errors.New("bad credential")
	}))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/ingest/data", bytes.NewReader(validBody()))
	req.Header.Set("Authorization", "Bearer stale")
	req = req.WithContext(auth.WithUserID(req.Context(), "gateway"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if ingestor.lastUser != "gateway" {
		t.Fatalf("expected gateway identity fallback, got %q", ingestor.lastUser)
	}
}
