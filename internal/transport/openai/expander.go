package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/metrics"
)

// DefaultMaxTerms caps the expansions returned per search term.
const DefaultMaxTerms = 5

const systemPrompt = `You expand search terms for a US federal contract document search.
For each input term return related acquisition vocabulary: synonyms, abbreviations and spelled-out acronyms.
Answer with a single JSON object mapping every input term to an array of at most %d strings. No prose.`

// Expander builds the expansion dictionary with an OpenAI-compatible chat model.
type Expander struct {
	client   *openai.Client
	model    string
	maxTerms int
	logger   *zap.Logger
}

// Config holds the expansion provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	MaxTerms int
	Logger   *zap.Logger
}

// NewExpander creates an OpenAI-compatible expansion provider.
func NewExpander(cfg *Config) *Expander {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxTerms := cfg.MaxTerms
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Expander{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		maxTerms: maxTerms,
		logger:   log,
	}
}

// Expand returns related terms keyed by the requested search terms. Terms the
// model skipped map to nothing; keys the model invented are dropped.
func (e *Expander) Expand(ctx context.Context, terms []string) (map[string][]string, error) {
	dict, _, err := e.ExpandWithUsage(ctx, terms)
	return dict, err
}

// ExpandWithUsage is Expand that also reports the tokens the call consumed.
func (e *Expander) ExpandWithUsage(ctx context.Context, terms []string) (map[string][]string, int, error) {
	wanted := uniqueTerms(terms)
	if len(wanted) == 0 {
		return map[string][]string{}, 0, nil
	}
	input, err := json.Marshal(wanted)
	if err != nil {
		return nil, 0, fmt.Errorf("encode terms: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, e.maxTerms)},
			{Role: openai.ChatMessageRoleUser, Content: string(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return nil, 0, parseAPIError(err)
	}
	tokens := resp.Usage.TotalTokens
	if len(resp.Choices) == 0 {
		metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return nil, tokens, fmt.Errorf("empty expansion response: %w", domain.ErrExpansionProvider)
	}

	dict, err := e.parse(resp.Choices[0].Message.Content, wanted)
	if err != nil {
		metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "error").Inc()
		return nil, tokens, err
	}

	metrics.ExpansionRequestsTotal.WithLabelValues(e.model, "success").Inc()
	metrics.ExpansionRequestDuration.WithLabelValues(e.model).Observe(duration.Seconds())
	e.logger.Debug("query expanded",
		zap.Int("terms", len(wanted)), zap.Int("expanded", len(dict)),
		zap.Int("total_tokens", tokens), zap.Duration("duration", duration))
	return dict, tokens, nil
}

func (e *Expander) parse(content string, wanted []string) (map[string][]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw map[string][]string
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode expansion %q: %w", truncate(content, 200), domain.ErrExpansionProvider)
	}

	byLower := make(map[string][]string, len(raw))
	for k, v := range raw {
		byLower[strings.ToLower(strings.TrimSpace(k))] = v
	}

	dict := make(map[string][]string, len(wanted))
	for _, term := range wanted {
		alts := byLower[strings.ToLower(term)]
		var out []string
		seen := map[string]bool{strings.ToLower(term): true}
		for _, a := range alts {
			a = strings.TrimSpace(a)
			if a == "" || seen[strings.ToLower(a)] {
				continue
			}
			seen[strings.ToLower(a)] = true
			out = append(out, a)
			if len(out) == e.maxTerms {
				break
			}
		}
		if len(out) > 0 {
			dict[term] = out
		}
	}
	return dict, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Expander) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrExpansionProvider.
func parseAPIError(err error) error {
	wrap := domain.ErrExpansionProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("expansion API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("expansion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("expansion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("expansion request failed: %w", wrap)
}

// extractDetail extracts the "detail" field some OpenAI-compatible gateways return.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
