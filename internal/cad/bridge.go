package cad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/raphaelgruber/partvoice-go/internal/models"
)

// BridgeClient talks to the desktop-side CAD bridge, a small HTTP service
// that translates operation requests into native CAD API calls on the
// workstation running the CAD application.
type BridgeClient struct {
	endpoint   string
	cadVersion string
	httpClient *http.Client
}

var _ Engine = (*BridgeClient)(nil)

// NewBridgeClient creates a bridge client. If endpoint is empty, uses the
// PARTVOICE_CAD_BRIDGE_URL env var or defaults to localhost:7070. The
// timeout covers a full CAD rebuild and can be tuned via
// PARTVOICE_CAD_TIMEOUT.
func NewBridgeClient(endpoint, cadVersion string) *BridgeClient {
	if endpoint == "" {
		endpoint = os.Getenv("PARTVOICE_CAD_BRIDGE_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:7070"
	}

	timeout := 2 * time.Minute // rebuilds of large feature trees are slow
	if t := os.Getenv("PARTVOICE_CAD_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &BridgeClient{
		endpoint:   endpoint,
		cadVersion: cadVersion,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// operationPayload is the wire request for an operation dispatch.
type operationPayload struct {
	PartID      string         `json:"part_id"`
	FeatureType string         `json:"feature_type"`
	Parameters  map[string]any `json:"parameters"`
	CADVersion  string         `json:"cad_version,omitempty"`
}

// renamePayload is the wire request for a feature-tree rename.
type renamePayload struct {
	PartID    string `json:"part_id"`
	FeatureID string `json:"feature_id"`
	Label     string `json:"label"`
}

// Execute dispatches one validated operation to the bridge.
func (c *BridgeClient) Execute(ctx context.Context, partID string, req models.OperationRequest) (*Result, error) {
	payload := operationPayload{
		PartID:      partID,
		FeatureType: string(req.FeatureType),
		Parameters:  req.Parameters,
		CADVersion:  c.cadVersion,
	}

	var result Result
	if err := c.post(ctx, "/api/v1/operations", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RenameFeature renames a feature in the part's feature tree.
func (c *BridgeClient) RenameFeature(ctx context.Context, partID, featureID, label string) error {
	payload := renamePayload{PartID: partID, FeatureID: featureID, Label: label}

	var result Result
	if err := c.post(ctx, "/api/v1/features/rename", payload, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("rename feature: %s", result.Error)
	}
	return nil
}

// Health checks the bridge connection.
func (c *BridgeClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cad bridge unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cad bridge health: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *BridgeClient) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cad bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cad bridge: HTTP %d: %s", resp.StatusCode, truncateBody(data))
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
