package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/souqline/fulfillment-service/internal/config"
)

// Verdict is the categorical answer of the package-damage classifier. The
// wire values come from the classifier service.
type Verdict string

const (
	VerdictIntact  Verdict = "undamageQR"
	VerdictDamaged Verdict = "damageQR"
	VerdictUnknown Verdict = "unknown"
)

// ErrVerdictUnavailable reports that the classifier could not produce a
// verdict for this attempt. A soft failure: it blocks verification for the
// current frame only, and the next attempt may succeed.
var ErrVerdictUnavailable = errors.New("clients: verdict unavailable")

// HTTPVerdictClient submits captured frames to the damage-classification
// service and returns its verdict.
type HTTPVerdictClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPVerdictClient(cfg config.ServiceConfig) *HTTPVerdictClient {
	return &HTTPVerdictClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Classify posts the frame as a multipart upload and maps the classifier's
// result field to a Verdict. Network errors, timeouts and non-200 responses
// all surface as ErrVerdictUnavailable.
func (c *HTTPVerdictClient) Classify(ctx context.Context, frame []byte) (Verdict, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "snapshot.jpg")
	if err != nil {
		return VerdictUnknown, err
	}
	if _, err := part.Write(frame); err != nil {
		return VerdictUnknown, err
	}
	if err := mw.Close(); err != nil {
		return VerdictUnknown, err
	}

	url := fmt.Sprintf("%s/scan", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return VerdictUnknown, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Verdict request failed", "error", err)
		return VerdictUnknown, ErrVerdictUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		slog.Warn("Verdict service returned non-OK status", "status", resp.StatusCode)
		return VerdictUnknown, fmt.Errorf("%w: classifier returned status %d", ErrVerdictUnavailable, resp.StatusCode)
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("Verdict response malformed", "error", err)
		return VerdictUnknown, ErrVerdictUnavailable
	}

	switch Verdict(result.Result) {
	case VerdictIntact:
		return VerdictIntact, nil
	case VerdictDamaged:
		return VerdictDamaged, nil
	default:
		slog.Debug("Classifier returned unrecognized verdict", "result", result.Result)
		return VerdictUnknown, nil
	}
}
