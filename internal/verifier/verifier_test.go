package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formalci/formalci/internal/prover"
)

func TestParseProofStatus(t *testing.T) {
	cases := map[string]ProofStatus{
		"VERIFIED": StatusVerified, "pass": StatusVerified, "Success": StatusVerified,
		"FAILED": StatusFailed, "fail": StatusFailed,
		"timeout": StatusTimeout,
		"ERROR":   StatusError,
		"bogus":   StatusUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, parseProofStatus(raw), raw)
	}
}

func TestVerifyProofSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "coq", req.Variables["prover"])

		resp := graphQLResponse{
			Data: json.RawMessage(`{"verifyProof":{"status":"VERIFIED","message":"ok","proverOutput":"","durationMs":42,"artifacts":[]}}`),
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.VerifyProof(context.Background(), prover.Coq, "Theorem t : True.")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, result.Status)
	assert.Equal(t, uint64(42), result.DurationMs)
}

func TestVerifyProofGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := graphQLResponse{Errors: []graphQLError{{Message: "prover unavailable"}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.VerifyProof(context.Background(), prover.Coq, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prover unavailable")
}

func TestHealthCheckUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1")
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestProverStatusCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := graphQLResponse{Data: json.RawMessage(`{"proverStatus":{"available":true,"message":""}}`)}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL)
	s1, err := c.ProverStatus(context.Background(), prover.Lean)
	require.NoError(t, err)
	assert.Equal(t, ProverAvailable, s1)

	s2, err := c.ProverStatus(context.Background(), prover.Lean)
	require.NoError(t, err)
	assert.Equal(t, ProverAvailable, s2)
	assert.Equal(t, 1, calls) // second call served from cache
}
