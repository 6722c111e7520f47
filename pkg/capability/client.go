// Package capability implements the HTTP driver for the
// UpdateAvatarAppearance server-bake capability: build request, do, check
// status, decode an LLSD-XML body. The retry/backoff policy across calls
// lives in pkg/appearance, which is the only caller that knows
// TotalRetries and REBAKE_DELAY; this package makes one HTTP attempt per
// call.
package capability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/appearance"
)

// Config configures one region's capability endpoint.
type Config struct {
	// UpdateAvatarAppearanceURL is the capability URL this region granted
	// for the current session; capabilities are per-region, per-session,
	// and expire with the circuit.
	UpdateAvatarAppearanceURL string
	AgentID                   uuid.UUID
	SessionID                 uuid.UUID

	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration
}

// Client drives the UpdateAvatarAppearance capability over HTTP and
// implements appearance.ServerBakeClient.
type Client struct {
	log  *zap.Logger
	cfg  Config
	http *http.Client
}

// NewClient constructs a Client. httpClient may be nil to use a
// sensible default.
func NewClient(log *zap.Logger, cfg Config, httpClient *http.Client) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{log: log, cfg: cfg, http: httpClient}
}

var _ appearance.ServerBakeClient = (*Client)(nil)

// UpdateAvatarAppearance POSTs an LLSD-XML request carrying cof_version
// and decodes the LLSD-XML reply: success, cof_version, texture_id[], and
// on mismatch an expected cof_version. A single call makes exactly one
// HTTP attempt; the caller (pkg/appearance's runServerSide) owns the retry
// loop across calls, since only it knows about TotalRetries/REBAKE_DELAY
// and the own-avatar-wait precondition.
func (c *Client) UpdateAvatarAppearance(ctx context.Context, cofVersion int) (appearance.ServerBakeResponse, error) {
	reqBody, err := encodeLLSD(llsdMap(map[string]llsdValue{
		"cof_version": llsdInteger(cofVersion),
	}))
	if err != nil {
		return appearance.ServerBakeResponse{}, errors.Wrap(err, "capability: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UpdateAvatarAppearanceURL, bytes.NewReader(reqBody))
	if err != nil {
		return appearance.ServerBakeResponse{}, errors.Wrap(err, "capability: build request")
	}
	req.Header.Set("Content-Type", "application/llsd+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("UpdateAvatarAppearance request failed", zap.Error(err))
		return appearance.ServerBakeResponse{}, errors.Wrap(err, "capability: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return appearance.ServerBakeResponse{}, errors.Wrap(err, "capability: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("UpdateAvatarAppearance non-200 response", zap.Int("status", resp.StatusCode))
		return appearance.ServerBakeResponse{}, errors.Errorf("capability: unexpected status %d", resp.StatusCode)
	}

	root, err := decodeLLSD(body)
	if err != nil {
		return appearance.ServerBakeResponse{}, err
	}
	return parseServerBakeResponse(root)
}

func parseServerBakeResponse(root llsdValue) (appearance.ServerBakeResponse, error) {
	if root.kind != "map" {
		return appearance.ServerBakeResponse{}, errors.New("capability: response root is not an LLSD map")
	}

	var out appearance.ServerBakeResponse
	if v, ok := root.m["success"]; ok && v.kind == "boolean" {
		out.Success = v.b
	}
	if v, ok := root.m["cof_version"]; ok && v.kind == "integer" {
		out.CofVersion = int(v.i)
	}
	if v, ok := root.m["error"]; ok && v.kind == "string" {
		out.Error = v.str
	}
	if v, ok := root.m["expected"]; ok && v.kind == "integer" {
		out.Expected = int(v.i)
		out.HasExpected = true
	}
	if v, ok := root.m["texture_id"]; ok && v.kind == "array" {
		out.Textures = make([]uuid.UUID, len(v.arr))
		for i, item := range v.arr {
			if item.kind == "uuid" {
				out.Textures[i] = item.id
			}
		}
	}
	return out, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("capability.Client{url=%s, agent=%s}", c.cfg.UpdateAvatarAppearanceURL, c.cfg.AgentID)
}
