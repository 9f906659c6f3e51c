package scorer

import "fmt"

const (
	// CodeConnectionError classifies failures where the scoring service
	// could not be reached at all.
	CodeConnectionError = "connection_error"
	// CodeServiceError classifies failures where the service was reachable
	// but misbehaved, e.g. a malformed response body.
	CodeServiceError = "service_error"
)

// Error is the classified failure surfaced to callers for every remote
// scoring problem. Code is either one of the two transport classes above or
// the provider-supplied code extracted from the structured error envelope.
type Error struct {
	Code    string
	Message string
	// Status is the HTTP status of the response, or 0 when no response was
	// received.
	Status int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("scorer: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}

	return fmt.Sprintf("scorer: %s: %s", e.Code, e.Message)
}

// Retryable reports whether the failure is worth retrying: unreachable
// service or a server-side error. Provider rejections (4xx envelopes) and
// malformed successful responses are not.
func (e *Error) Retryable() bool {
	return e.Code == CodeConnectionError || e.Status >= 500
}

// ProviderResult carries the raw scores, labels, and model versions exactly
// as returned by the remote service. Results are never cached; every call is
// provider-fresh so stale scores can never affect a safety decision.
type ProviderResult struct {
	Scores        map[string]float64
	Labels        []string
	ModelVersions map[string]string
}

// textRequest is the JSON body of a text scoring call.
type textRequest struct {
	Text string  `json:"text"`
	Lang *string `json:"lang"`
}

// scorePayload is the JSON body of a successful scoring response. The named
// score fields are merged into the generic score map under their canonical
// keys.
type scorePayload struct {
	ToxicityScore *float64           `json:"toxicity_score"`
	HateScore     *float64           `json:"hate_score"`
	NSFWScore     *float64           `json:"nsfw_score"`
	Scores        map[string]float64 `json:"scores"`
	Labels        []string           `json:"labels"`
	ModelVersions map[string]string  `json:"model_versions"`
}

// errorEnvelope is the JSON body the service returns alongside a non-2xx
// status.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
