// Package client is the thin HTTP client the register/check/status/list
// subcommands share to talk to a running `formalci serve` instance's
// control API, the same "post a {query, variables} envelope, print the
// JSON back" shape the hand-rolled dispatcher in internal/controlapi
// expects on the server side.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/formalci/formalci/internal/config"
)

// Call posts query/variables to serverURL's /graphql endpoint and
// decodes the {data, errors} envelope, returning an error built from
// the errors array when non-empty.
func Call(serverURL, query string, variables interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(serverURL+"/graphql", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []string        `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("%s: %v", query, envelope.Errors)
	}
	return envelope.Data, nil
}

// ResolveServer picks the control API base URL: an explicit --server
// override wins; otherwise the port configured in configPath's server
// section is used; otherwise localhost:8080, matching config.Default().
func ResolveServer(configPath, override string) string {
	if override != "" {
		return override
	}
	cfg, err := config.Load(configPath)
	if err != nil || cfg.Server.Port == 0 {
		return "http://localhost:8080"
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

// PrettyJSON re-indents a json.RawMessage for terminal output, falling
// back to the raw bytes if it somehow isn't valid JSON.
func PrettyJSON(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
