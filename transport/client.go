package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/f3rmion/keyserver/job"
	"github.com/f3rmion/keyserver/keyshare"
)

// ErrUnknownPeer is returned when a request targets a node without address.
var ErrUnknownPeer = errors.New("transport: unknown peer")

// StatusError is a reply with an unexpected HTTP status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: status %d: %s", e.Code, e.Message)
}

// ClientConfig tunes a Client.
type ClientConfig struct {
	// Peers maps each node to its base URL, e.g. http://10.0.0.2:8080.
	Peers map[keyshare.NodeID]string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// CompressAbove is the request size from which bodies are compressed.
	// Zero selects DefaultCompressAbove, negative disables compression.
	CompressAbove int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client sends requests of one job kind to peers.
type Client[Req, Resp any] struct {
	kind          string
	peers         map[keyshare.NodeID]string
	http          *http.Client
	reqCodec      Codec[Req]
	respCodec     Codec[Resp]
	compressAbove int
	log           *slog.Logger
}

var _ job.Transport[keyshare.NodeID, keyshare.SessionSet] = (*Client[keyshare.NodeID, keyshare.SessionSet])(nil)

// NewClient creates a transport for job kind.
func NewClient[Req, Resp any](kind string, cfg ClientConfig, reqCodec Codec[Req], respCodec Codec[Resp]) *Client[Req, Resp] {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	compressAbove := cfg.CompressAbove
	if compressAbove == 0 {
		compressAbove = DefaultCompressAbove
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	peers := make(map[keyshare.NodeID]string, len(cfg.Peers))
	for id, url := range cfg.Peers {
		peers[id] = strings.TrimRight(url, "/")
	}

	return &Client[Req, Resp]{
		kind:          kind,
		peers:         peers,
		http:          httpClient,
		reqCodec:      reqCodec,
		respCodec:     respCodec,
		compressAbove: compressAbove,
		log:           log.With("transport", kind),
	}
}

// Send posts req to node and decodes its answer.
func (c *Client[Req, Resp]) Send(ctx context.Context, node keyshare.NodeID, req Req) (job.RequestAction[Resp], error) {
	var none job.RequestAction[Resp]

	base, ok := c.peers[node]
	if !ok {
		return none, fmt.Errorf("%w: %s", ErrUnknownPeer, node)
	}

	payload, err := c.reqCodec.Encode(req)
	if err != nil {
		return none, fmt.Errorf("transport: encode request: %w", err)
	}
	body, compressed, err := compressBody(payload, c.compressAbove)
	if err != nil {
		return none, fmt.Errorf("transport: compress request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+JobPath(c.kind), bytes.NewReader(body))
	if err != nil {
		return none, fmt.Errorf("transport: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Accept-Encoding", encodingZstd)
	if compressed {
		httpReq.Header.Set("Content-Encoding", encodingZstd)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return none, fmt.Errorf("transport: post to %s: %w", node, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return none, fmt.Errorf("transport: read reply from %s: %w", node, err)
	}
	if len(raw) > maxBodySize {
		return none, fmt.Errorf("transport: reply from %s exceeds %d bytes", node, maxBodySize)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict:
	default:
		return none, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	data, err := decompressBody(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return none, fmt.Errorf("transport: reply from %s: %w", node, err)
	}

	if resp.StatusCode == http.StatusConflict {
		c.log.Debug("peer refused request", "node", node)
		if len(data) == 0 {
			var zero Resp
			return job.RejectRequest(zero), nil
		}
		out, err := c.respCodec.Decode(data)
		if err != nil {
			return none, fmt.Errorf("transport: decode refusal from %s: %w", node, err)
		}
		return job.RejectRequest(out), nil
	}

	out, err := c.respCodec.Decode(data)
	if err != nil {
		return none, fmt.Errorf("transport: decode reply from %s: %w", node, err)
	}
	return job.Respond(out), nil
}

// JobPath is the route of job kind on every node.
func JobPath(kind string) string {
	return "/jobs/" + kind
}
