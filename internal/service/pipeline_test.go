package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souqline/fulfillment-service/internal/clients"
	"github.com/souqline/fulfillment-service/internal/models"
	"github.com/souqline/fulfillment-service/internal/optical"
	"github.com/souqline/fulfillment-service/internal/qrtoken"
)

type fakeClassifier struct {
	verdict clients.Verdict
	err     error
}

func (f fakeClassifier) Classify(ctx context.Context, frame []byte) (clients.Verdict, error) {
	return f.verdict, f.err
}

type spyVerifier struct {
	calls int
	order *models.Order
	err   error
}

func (s *spyVerifier) Verify(ctx context.Context, token models.ScanToken) (*models.Order, error) {
	s.calls++
	return s.order, s.err
}

func qrFrame(t *testing.T, orderID, secretKey string) image.Image {
	t.Helper()
	raw, err := qrtoken.Render(qrtoken.Encode(orderID, secretKey))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func blankFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for x := 0; x < 100; x++ {
		for y := 0; y < 100; y++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestPipelineDamagedVerdictSuppressesVerification(t *testing.T) {
	verifier := &spyVerifier{order: &models.Order{ID: "O1"}}
	pipeline := NewScanPipeline(optical.NewDecoder(), fakeClassifier{verdict: clients.VerdictDamaged}, verifier)

	result, err := pipeline.ProcessFrame(context.Background(), qrFrame(t, "O1", "S1"), []byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDamaged, result.Outcome)
	assert.Equal(t, clients.VerdictDamaged, result.Verdict)
	assert.Nil(t, result.Order)
	assert.Zero(t, verifier.calls, "verification ran despite a damaged verdict")
}

func TestPipelineUnavailableVerdictSuppressesVerification(t *testing.T) {
	verifier := &spyVerifier{order: &models.Order{ID: "O1"}}
	pipeline := NewScanPipeline(optical.NewDecoder(),
		fakeClassifier{verdict: clients.VerdictUnknown, err: clients.ErrVerdictUnavailable}, verifier)

	result, err := pipeline.ProcessFrame(context.Background(), qrFrame(t, "O1", "S1"), []byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeVerdictUnavailable, result.Outcome)
	assert.Zero(t, verifier.calls)
}

func TestPipelineUnknownVerdictDoesNotGateAsIntact(t *testing.T) {
	verifier := &spyVerifier{order: &models.Order{ID: "O1"}}
	pipeline := NewScanPipeline(optical.NewDecoder(), fakeClassifier{verdict: clients.VerdictUnknown}, verifier)

	result, err := pipeline.ProcessFrame(context.Background(), qrFrame(t, "O1", "S1"), []byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDamaged, result.Outcome)
	assert.Zero(t, verifier.calls)
}

func TestPipelineIntactVerdictRunsVerification(t *testing.T) {
	verifier := &spyVerifier{order: &models.Order{ID: "O1", Status: models.OrderStatusAccepted}}
	pipeline := NewScanPipeline(optical.NewDecoder(), fakeClassifier{verdict: clients.VerdictIntact}, verifier)

	result, err := pipeline.ProcessFrame(context.Background(), qrFrame(t, "O1", "S1"), []byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeAuthenticated, result.Outcome)
	assert.Equal(t, 1, verifier.calls)
	require.NotNil(t, result.Order)
	assert.Equal(t, "O1", result.Order.ID)
}

func TestPipelineFailedVerification(t *testing.T) {
	verifier := &spyVerifier{err: ErrNotAuthenticated}
	pipeline := NewScanPipeline(optical.NewDecoder(), fakeClassifier{verdict: clients.VerdictIntact}, verifier)

	result, err := pipeline.ProcessFrame(context.Background(), qrFrame(t, "O1", "bad"), []byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNotAuthenticated, result.Outcome)
	assert.Equal(t, 1, verifier.calls)
	assert.Nil(t, result.Order)
}

func TestPipelineNoCodeInFrame(t *testing.T) {
	verifier := &spyVerifier{}
	pipeline := NewScanPipeline(optical.NewDecoder(), fakeClassifier{verdict: clients.VerdictIntact}, verifier)

	result, err := pipeline.ProcessFrame(context.Background(), blankFrame(), []byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoCode, result.Outcome)
	assert.Zero(t, verifier.calls)
}
