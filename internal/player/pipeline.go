package player

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Pipeline abstracts the audio backend the engine drives. Prepare checks
// that a stream URL is playable and reports its duration in milliseconds
// (0 when unknown).
type Pipeline interface {
	Prepare(ctx context.Context, url string) (durationMs int64, err error)
}

// HTTPPipeline probes remote streams over HTTP. Recordings are constant
// bitrate MP3, so duration is estimated from the content length.
type HTTPPipeline struct {
	client *http.Client
	// bitrate in kilobits per second used for the duration estimate.
	bitrateKbps int64
}

// NewHTTPPipeline creates a pipeline probing streams with the given
// client. bitrateKbps defaults to 128 when zero.
func NewHTTPPipeline(client *http.Client, bitrateKbps int64) *HTTPPipeline {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if bitrateKbps <= 0 {
		bitrateKbps = 128
	}
	return &HTTPPipeline{client: client, bitrateKbps: bitrateKbps}
}

// Prepare issues a HEAD request for the stream.
func (p *HTTPPipeline) Prepare(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	if resp.ContentLength <= 0 {
		return 0, nil
	}
	// bits divided by kilobits-per-second yields milliseconds directly.
	return resp.ContentLength * 8 / p.bitrateKbps, nil
}
