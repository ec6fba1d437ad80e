// Package verifier is a typed client for the external proof-verification
// backend's GraphQL API: verify_proof, suggest_tactics, prover_status,
// and health_check. Queries are hand-encoded JSON bodies over net/http;
// the backend's schema is small enough that a generated client would be
// more code than the four operations themselves.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/formalci/formalci/internal/bot"
	"github.com/formalci/formalci/internal/prover"
)

// Per-call deadlines. Verification can legitimately take a while;
// health and status probes should fail fast.
const (
	DefaultTimeout      = 30 * time.Second
	HealthTimeout       = 5 * time.Second
	ProverStatusTimeout = 10 * time.Second
)

// ProofStatus is the normalized verification outcome.
type ProofStatus string

const (
	StatusVerified ProofStatus = "verified"
	StatusFailed   ProofStatus = "failed"
	StatusTimeout  ProofStatus = "timeout"
	StatusError    ProofStatus = "error"
	StatusUnknown  ProofStatus = "unknown"
)

// parseProofStatus maps a verifier-returned status string onto
// ProofStatus, case-insensitively.
func parseProofStatus(raw string) ProofStatus {
	switch strings.ToUpper(raw) {
	case "VERIFIED", "PASS", "SUCCESS":
		return StatusVerified
	case "FAILED", "FAIL":
		return StatusFailed
	case "TIMEOUT":
		return StatusTimeout
	case "ERROR":
		return StatusError
	default:
		return StatusUnknown
	}
}

// ProofResult is the outcome of a verify_proof call.
type ProofResult struct {
	Status       ProofStatus
	Message      string
	ProverOutput string
	DurationMs   uint64
	Artifacts    []string
}

// TacticSuggestion is one ML-suggested next tactic.
type TacticSuggestion struct {
	Tactic      string
	Confidence  float64
	Explanation string
}

// ProverStatus is prover_status's availability report.
type ProverStatus string

const (
	ProverAvailable   ProverStatus = "available"
	ProverDegraded    ProverStatus = "degraded"
	ProverUnavailable ProverStatus = "unavailable"
	ProverUnknown     ProverStatus = "unknown"
)

// graphQLRequest/graphQLResponse are the minimal envelope the backend
// speaks; no field beyond what the four operations need.
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Client is a verifier backend client.
type Client struct {
	httpClient *http.Client
	endpoint   string

	statusCache *lru.Cache
}

// statusCacheTTL bounds how stale a cached prover_status answer may be.
const statusCacheTTL = 10 * time.Second

type statusEntry struct {
	status ProverStatus
	at     time.Time
}

// New builds a Client against endpoint on a go-retryablehttp transport
// with RetryMax=0, so the transport itself never retries; the
// retry/backoff decision belongs to internal/retry, not the HTTP
// transport.
func New(endpoint string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil

	cache, _ := lru.New(64)

	return &Client{
		httpClient:  rc.StandardClient(),
		endpoint:    endpoint,
		statusCache: cache,
	}
}

func (c *Client) do(ctx context.Context, timeout time.Duration, req graphQLRequest, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return bot.Wrap(bot.KindVerifier, "encoding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return bot.Wrap(bot.KindVerifier, "building request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return bot.Wrap(bot.KindVerifier, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return bot.WrapPlatform(bot.KindVerifier, "verifier returned non-2xx", resp.StatusCode, "")
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return bot.Wrap(bot.KindVerifier, "decoding response", err)
	}
	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, len(gqlResp.Errors))
		for i, e := range gqlResp.Errors {
			msgs[i] = e.Message
		}
		return bot.New(bot.KindVerifier, strings.Join(msgs, ", "))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(gqlResp.Data, out)
}

// VerifyProof submits proof content for verification.
func (c *Client) VerifyProof(ctx context.Context, kind prover.Kind, content string) (ProofResult, error) {
	req := graphQLRequest{
		Query: `mutation VerifyProof($prover: String!, $content: String!) {
			verifyProof(prover: $prover, content: $content) {
				status message proverOutput durationMs artifacts
			}
		}`,
		Variables: map[string]interface{}{"prover": string(kind), "content": content},
	}

	var data struct {
		VerifyProof struct {
			Status       string   `json:"status"`
			Message      string   `json:"message"`
			ProverOutput string   `json:"proverOutput"`
			DurationMs   uint64   `json:"durationMs"`
			Artifacts    []string `json:"artifacts"`
		} `json:"verifyProof"`
	}

	if err := c.do(ctx, DefaultTimeout, req, &data); err != nil {
		return ProofResult{}, err
	}

	return ProofResult{
		Status:       parseProofStatus(data.VerifyProof.Status),
		Message:      data.VerifyProof.Message,
		ProverOutput: data.VerifyProof.ProverOutput,
		DurationMs:   data.VerifyProof.DurationMs,
		Artifacts:    data.VerifyProof.Artifacts,
	}, nil
}

// SuggestTactics requests ML tactic suggestions for a failing goal.
func (c *Client) SuggestTactics(ctx context.Context, kind prover.Kind, proofContext, goalState string) ([]TacticSuggestion, error) {
	req := graphQLRequest{
		Query: `mutation SuggestTactics($prover: String!, $context: String!, $goalState: String!) {
			suggestTactics(prover: $prover, context: $context, goalState: $goalState) {
				tactic confidence explanation
			}
		}`,
		Variables: map[string]interface{}{
			"prover": string(kind), "context": proofContext, "goalState": goalState,
		},
	}

	var data struct {
		SuggestTactics []struct {
			Tactic      string  `json:"tactic"`
			Confidence  float64 `json:"confidence"`
			Explanation string  `json:"explanation"`
		} `json:"suggestTactics"`
	}

	if err := c.do(ctx, DefaultTimeout, req, &data); err != nil {
		return nil, err
	}

	out := make([]TacticSuggestion, len(data.SuggestTactics))
	for i, s := range data.SuggestTactics {
		out[i] = TacticSuggestion{Tactic: s.Tactic, Confidence: s.Confidence, Explanation: s.Explanation}
	}
	return out, nil
}

// ProverStatus reports prover availability, caching results briefly per
// prover so a burst of jobs for the same prover doesn't hammer the
// backend with identical status probes.
func (c *Client) ProverStatus(ctx context.Context, kind prover.Kind) (ProverStatus, error) {
	if cached, ok := c.statusCache.Get(kind); ok {
		entry := cached.(statusEntry)
		if time.Since(entry.at) < statusCacheTTL {
			return entry.status, nil
		}
		c.statusCache.Remove(kind)
	}

	req := graphQLRequest{
		Query: `query ProverStatus($prover: String!) {
			proverStatus(prover: $prover) { available message }
		}`,
		Variables: map[string]interface{}{"prover": string(kind)},
	}

	var data struct {
		ProverStatus struct {
			Available bool   `json:"available"`
			Message   string `json:"message"`
		} `json:"proverStatus"`
	}

	if err := c.do(ctx, ProverStatusTimeout, req, &data); err != nil {
		if bot.Is(err, bot.KindVerifier) {
			return ProverUnavailable, nil
		}
		return ProverUnknown, err
	}

	status := ProverUnavailable
	if data.ProverStatus.Available {
		status = ProverAvailable
	}
	c.statusCache.Add(kind, statusEntry{status: status, at: time.Now()})
	return status, nil
}

// HealthCheck reports whether the verifier backend is reachable.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req := graphQLRequest{Query: "{ __typename }", Variables: map[string]interface{}{}}
	err := c.do(ctx, HealthTimeout, req, nil)
	return err == nil
}

// InvalidateStatusCache clears the cached prover_status result, e.g.
// after an operator-triggered recheck.
func (c *Client) InvalidateStatusCache(kind prover.Kind) {
	c.statusCache.Remove(kind)
}
