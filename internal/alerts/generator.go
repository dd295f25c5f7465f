package alerts

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"stancesense-cloud/internal/observability/metrics"
	telemetry "stancesense-cloud/internal/telemetry/domain"
)

// TextBackend is the external text-generation collaborator.
type TextBackend interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ConsentReader looks up whether a user allows external generative calls.
type ConsentReader interface {
	GetConsent(ctx context.Context, userID string) (bool, error)
}

const defaultBackendTimeout = 10 * time.Second

// Generator produces caregiver-facing alert messages for critical events.
// Every failure path degrades to a canned knowledge-base message; Build never
// fails.
type Generator struct {
	backend  TextBackend
	limiter  *RateLimiter
	consents ConsentReader
	kb       KnowledgeBase
	timeout  time.Duration
	logger   *log.Logger
}

// GeneratorOption configures the generator.
type GeneratorOption func(*Generator)

// WithBackend enables the external text-generation path.
func WithBackend(backend TextBackend) GeneratorOption {
	return func(g *Generator) {
		g.backend = backend
	}
}

// WithConsentReader wires the per-user consent lookup.
func WithConsentReader(consents ConsentReader) GeneratorOption {
	return func(g *Generator) {
		g.consents = consents
	}
}

// WithKnowledgeBase overrides the built-in knowledge base.
func WithKnowledgeBase(kb KnowledgeBase) GeneratorOption {
	return func(g *Generator) {
		if kb != nil {
			g.kb = kb
		}
	}
}

// WithBackendTimeout bounds the external call.
func WithBackendTimeout(timeout time.Duration) GeneratorOption {
	return func(g *Generator) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// NewGenerator constructs a generator around a rate limiter.
func NewGenerator(limiter *RateLimiter, logger *log.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	g := &Generator{
		limiter: limiter,
		kb:      NewKnowledgeBase(nil),
		timeout: defaultBackendTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Build assembles the alert for a critical event. Consent and rate-limit
// gates short-circuit to the knowledge-base fallback; the readings block is
// always appended.
func (g *Generator) Build(ctx context.Context, processed telemetry.ProcessedPacket, eventType, userID string) telemetry.Alert {
	message := g.message(ctx, processed, eventType, userID)
	message += "\n\n" + readingsBlock(processed)

	metrics.IncAlertEvent(eventType)
	return telemetry.Alert{
		Timestamp:    processed.Timestamp,
		EventType:    eventType,
		Severity:     telemetry.SeverityFor(eventType),
		Message:      message,
		DataSnapshot: processed,
	}
}

func (g *Generator) message(ctx context.Context, processed telemetry.ProcessedPacket, eventType, userID string) string {
	if !g.consent(ctx, userID) {
		return g.kb.FallbackMessage(eventType)
	}
	if g.backend == nil {
		return g.kb.FallbackMessage(eventType)
	}
	// The bucket guards calls to the backend; nothing else spends tokens.
	if g.limiter != nil && !g.limiter.Allow() {
		metrics.IncAlertRateLimited()
		g.logger.Printf("alerts: generation rate limited for event %s", eventType)
		return g.kb.FallbackMessage(eventType)
	}

	knowledge := g.kb.Lookup(eventType)
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.backend.Generate(callCtx, systemPrompt(knowledge), userPrompt(processed, eventType))
	if err != nil || strings.TrimSpace(text) == "" {
		g.logger.Printf("alerts: text backend error for event %s: %v", eventType, err)
		return g.kb.FallbackMessage(eventType) + "\n(Could not reach AI for details)"
	}
	return text
}

// consent defaults to false when no reader is wired, the user is unknown, or
// the lookup fails. The external backend is never called without explicit
// consent.
func (g *Generator) consent(ctx context.Context, userID string) bool {
	if g.consents == nil || userID == "" {
		return false
	}
	allowed, err := g.consents.GetConsent(ctx, userID)
	if err != nil {
		g.logger.Printf("alerts: consent lookup failed for %s, assuming false: %v", userID, err)
		return false
	}
	return allowed
}

func systemPrompt(knowledge string) string {
	return fmt.Sprintf(`You are an assistant for the StanceSense Parkinson's monitor.
Your job is to create a concise, calm, and helpful alert message for a caregiver.

Use this knowledge to inform your response: %q

Be supportive and clear. Do not be overly alarming.
Start with a clear heading (e.g., "FALL DETECTED").`, knowledge)
}

func userPrompt(processed telemetry.ProcessedPacket, eventType string) string {
	return fmt.Sprintf(`A critical event '%s' was just detected for the patient.
Here is the sensor data:
- Tremor Detected: %t
- Rigidity Detected: %t
- Gait Stability Score: %.0f/100

Please generate the alert message.`,
		eventType,
		processed.Tremor.TremorDetected,
		processed.Rigidity.Rigid,
		processed.Analysis.GaitStabilityScore)
}

// readingsBlock is the structured operator-context appendix carried by every
// alert message.
func readingsBlock(processed telemetry.ProcessedPacket) string {
	var b strings.Builder
	b.WriteString("--- Sensor Readings ---\n")
	fmt.Fprintf(&b, "Fall detected: %t\n", processed.Safety.FallDetected)
	fmt.Fprintf(&b, "Accel (g): x=%.2f y=%.2f z=%.2f\n",
		processed.Safety.AccelXG, processed.Safety.AccelYG, processed.Safety.AccelZG)
	fmt.Fprintf(&b, "Tremor: detected=%t freq=%.1fHz amplitude=%.1fg\n",
		processed.Tremor.TremorDetected, processed.Tremor.FrequencyHz, processed.Tremor.AmplitudeG)
	fmt.Fprintf(&b, "Rigidity: rigid=%t emg_wrist=%.1f emg_arm=%.1f\n",
		processed.Rigidity.Rigid, processed.Rigidity.EMGWrist, processed.Rigidity.EMGArm)
	fmt.Fprintf(&b, "Severity: tremor %.0f%% | rigidity %.0f%% | slowness %.0f%% | gait %.0f%%",
		processed.Scores.Tremor*100, processed.Scores.Rigidity*100,
		processed.Scores.Slowness*100, processed.Scores.Gait*100)
	return b.String()
}
