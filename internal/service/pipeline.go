package service

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/souqline/fulfillment-service/internal/clients"
	"github.com/souqline/fulfillment-service/internal/metrics"
	"github.com/souqline/fulfillment-service/internal/models"
	"github.com/souqline/fulfillment-service/internal/optical"
	"github.com/souqline/fulfillment-service/internal/qrtoken"
)

// ScanOutcome summarizes one pipeline run over a single frame.
type ScanOutcome string

const (
	OutcomeAuthenticated      ScanOutcome = "authenticated"
	OutcomeNotAuthenticated   ScanOutcome = "not_authenticated"
	OutcomeNoCode             ScanOutcome = "no_code"
	OutcomeDamaged            ScanOutcome = "damaged"
	OutcomeVerdictUnavailable ScanOutcome = "verdict_unavailable"
)

// ScanResult is what one frame produced: the classifier's verdict, the
// pipeline outcome, and the authenticated order when verification passed.
type ScanResult struct {
	Outcome ScanOutcome     `json:"outcome"`
	Verdict clients.Verdict `json:"verdict"`
	Order   *models.Order   `json:"order,omitempty"`
}

// FrameClassifier obtains a damage verdict for a captured frame.
type FrameClassifier interface {
	Classify(ctx context.Context, frame []byte) (clients.Verdict, error)
}

// TokenVerifier authenticates a decoded scan token.
type TokenVerifier interface {
	Verify(ctx context.Context, token models.ScanToken) (*models.Order, error)
}

// ScanPipeline runs the full authentication attempt for one frame: damage
// verdict, optical decode, then secret verification. Verification only
// runs when the verdict is intact and a token was decoded; a damaged or
// unavailable verdict suppresses it for this frame without touching any
// state.
type ScanPipeline struct {
	decoder    *optical.Decoder
	classifier FrameClassifier
	verifier   TokenVerifier
}

func NewScanPipeline(decoder *optical.Decoder, classifier FrameClassifier, verifier TokenVerifier) *ScanPipeline {
	return &ScanPipeline{
		decoder:    decoder,
		classifier: classifier,
		verifier:   verifier,
	}
}

// ProcessFrame executes one independent attempt. Workflow failures land in
// the result's outcome; the returned error is reserved for backend faults.
func (p *ScanPipeline) ProcessFrame(ctx context.Context, img image.Image, raw []byte) (*ScanResult, error) {
	result := &ScanResult{Verdict: clients.VerdictUnknown}

	verdict, err := p.classifier.Classify(ctx, raw)
	metrics.Verdicts.WithLabelValues(string(verdict)).Inc()
	if err != nil {
		if errors.Is(err, clients.ErrVerdictUnavailable) {
			result.Outcome = OutcomeVerdictUnavailable
			return p.done(result), nil
		}
		return nil, err
	}
	result.Verdict = verdict

	payload, err := p.decoder.DecodeImage(img)
	if err != nil {
		result.Outcome = OutcomeNoCode
		return p.done(result), nil
	}

	orderID, secretKey, err := qrtoken.Decode(payload)
	if err != nil {
		result.Outcome = OutcomeNoCode
		return p.done(result), nil
	}

	if verdict != clients.VerdictIntact {
		// Decode succeeded but the package is not verifiably intact;
		// verification is suppressed for this frame only.
		slog.Info("Verification suppressed by verdict", "order_id", orderID, "verdict", verdict)
		result.Outcome = OutcomeDamaged
		return p.done(result), nil
	}

	order, err := p.verifier.Verify(ctx, models.ScanToken{OrderID: orderID, SecretKey: secretKey})
	if errors.Is(err, ErrNotAuthenticated) {
		result.Outcome = OutcomeNotAuthenticated
		return p.done(result), nil
	}
	if err != nil {
		return nil, err
	}

	result.Outcome = OutcomeAuthenticated
	result.Order = order
	return p.done(result), nil
}

func (p *ScanPipeline) done(result *ScanResult) *ScanResult {
	metrics.ScanAttempts.WithLabelValues(string(result.Outcome)).Inc()
	return result
}
