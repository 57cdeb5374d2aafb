package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
	"github.com/kailas-cloud/edasearch/internal/metrics"
)

// Config holds the search engine connection settings.
type Config struct {
	Addresses          []string
	Username           string
	Password           string
	Timeout            time.Duration
	RetryAttempts      uint
	RetryDelay         time.Duration
	InsecureSkipVerify bool
	Logger             *zap.Logger
}

// Engine executes search requests against OpenSearch/Elasticsearch.
type Engine struct {
	client   *opensearch.Client
	timeout  time.Duration
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

// New creates an engine client. No request is sent until first use.
func New(cfg *Config) (*Engine, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("at least one engine address is required")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed clusters
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	return newEngine(client, cfg), nil
}

func newEngine(client *opensearch.Client, cfg *Config) *Engine {
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		client:   client,
		timeout:  cfg.Timeout,
		attempts: attempts,
		delay:    cfg.RetryDelay,
		logger:   log,
	}
}

// Search sends req to index and decodes the response. Client errors are
// returned at once; transport failures and 5xx/429 responses are retried
// with backoff.
func (e *Engine) Search(ctx context.Context, index string, req *request.Request) (*response.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	kind := string(req.Kind())

	var resp *response.Response
	start := time.Now()
	err = retry.Do(
		func() error {
			r, err := e.do(ctx, index, body)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.attempts),
		retry.Delay(e.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("retrying search request",
				zap.String("kind", kind), zap.Uint("attempt", n+1), zap.Uint("max_attempts", e.attempts), zap.Error(err))
		}),
	)
	metrics.EngineRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EngineErrorsTotal.WithLabelValues(kind).Inc()
		return nil, err
	}
	e.logger.Debug("search executed",
		zap.String("kind", kind), zap.String("index", index),
		zap.Int64("hits", resp.Hits.Total.Value), zap.Duration("duration", time.Since(start)))
	return resp, nil
}

func (e *Engine) do(ctx context.Context, index string, body []byte) (*response.Response, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	osReq := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}
	res, err := osReq.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
	}
	defer res.Body.Close() //nolint:errcheck // read-only body

	if res.IsError() {
		engErr := errorFromResponse(res.StatusCode, res.Body)
		if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
			return nil, engErr
		}
		return nil, retry.Unrecoverable(engErr)
	}
	resp, err := response.Decode(res.Body)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: %w", domain.ErrEngine, err))
	}
	return resp, nil
}

func errorFromResponse(status int, body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Reason != "" {
		return domain.NewEngineError(status, errResp.Error.Type, errResp.Error.Reason)
	}
	return domain.NewEngineError(status, "", "")
}

// Ping checks that the cluster answers.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
	}
	defer res.Body.Close() //nolint:errcheck // read-only body
	if res.IsError() {
		return fmt.Errorf("%w: ping status %d", domain.ErrEngineUnavailable, res.StatusCode)
	}
	return nil
}
