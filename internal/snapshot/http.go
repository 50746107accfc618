package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/systemshift/supplygraph/internal/errs"
)

// HTTPConfig points at a simulation archive server.
//
// The timestamp listing lives at {BaseURL}/archive/schema/{Version} and each
// snapshot at {BaseURL}/archive/schema/{Version}/{timestamp}.
type HTTPConfig struct {
	BaseURL string
	Version string
	Timeout time.Duration

	// Breaker trips after this many consecutive failures. Zero means 5.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open. Zero means 30s.
	OpenTimeout time.Duration
}

// HTTPSource fetches snapshots from an archive server behind a circuit breaker.
type HTTPSource struct {
	client     *http.Client
	base       string
	timestamps []string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewHTTPSource lists the available timestamps and returns a source over them.
func NewHTTPSource(ctx context.Context, cfg HTTPConfig, client *http.Client, logger *zap.Logger) (*HTTPSource, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("http source: base url is required")
	}
	if strings.TrimSpace(cfg.Version) == "" {
		return nil, fmt.Errorf("http source: version is required")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	s := &HTTPSource{
		client: client,
		base:   strings.TrimRight(cfg.BaseURL, "/") + "/archive/schema/" + url.PathEscape(cfg.Version),
		logger: logger.Named("http_source"),
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "snapshot-source",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	body, err := s.get(ctx, s.base)
	if err != nil {
		return nil, fmt.Errorf("listing timestamps: %w", err)
	}
	timestamps, err := parseTimestampList(body)
	if err != nil {
		return nil, fmt.Errorf("listing timestamps: %w", err)
	}
	s.timestamps = timestamps
	return s, nil
}

func (s *HTTPSource) Len() int { return len(s.timestamps) }

func (s *HTTPSource) Fetch(ctx context.Context, t int) (*Snapshot, error) {
	if err := CheckIndex(t, len(s.timestamps)); err != nil {
		return nil, err
	}
	body, err := s.get(ctx, s.base+"/"+url.PathEscape(s.timestamps[t]))
	if err != nil {
		return nil, errs.Unavailable(t, err)
	}
	snap, err := Decode(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Unavailable(t, err)
	}
	return snap, nil
}

// Timestamp returns the server-side label of index t.
func (s *HTTPSource) Timestamp(t int) string {
	if t < 0 || t >= len(s.timestamps) {
		return ""
	}
	return s.timestamps[t]
}

func (s *HTTPSource) get(ctx context.Context, target string) ([]byte, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("GET %s: unexpected status %d", target, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Debug("request rejected by breaker", zap.String("url", target))
		}
		return nil, err
	}
	return out.([]byte), nil
}

// parseTimestampList accepts a JSON array of numbers or strings.
func parseTimestampList(body []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding timestamp list: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err != nil {
			return nil, fmt.Errorf("timestamp %s is neither string nor number", string(r))
		}
		out = append(out, n.String())
	}
	return out, nil
}
