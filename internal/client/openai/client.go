package openaiclient

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polymerbot/internal/parser"
)

const systemPrompt = "You are a data extraction expert. Extract ONLY items with explicit numeric prices >= 10000. Numbers that are part of item names are NOT prices. Return only valid JSON."

const userPromptHeader = `Extract item names and their NUMERIC prices from the following message.
The message is from a Telegram group where traders post commodity prices.

CRITICAL RULES:
1. ONLY extract items that have EXPLICIT numeric prices shown in the message
2. IGNORE items marked only with a status word (BOR, AVAILABLE, SOLD OUT) or symbols
3. Prices are 5-6 digit numbers, typically 14000-20000
4. DO NOT extract a number from the item name as the price
   - "Uz-Kor Gas Jm370" has NO price (370 is part of the name)
   - "BL5200" has NO price (5200 is part of the name)
5. Ignore phone numbers, dates, and contact information
6. Return ONLY a JSON array of {"name": "...", "price": 14900} objects
7. If nothing qualifies, return []

Message:
`

// jsonArrayRe pulls the array out of a reply that wraps it in prose.
var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

type inferredItem struct {
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

type Config struct {
	APIKey string
	Model  string
}

type Client struct {
	api    openai.Client
	model  string
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		api:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		logger: logger,
	}
}

func (c *Client) Infer(ctx context.Context, text string) ([]parser.Candidate, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPromptHeader + text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, parser.ErrMalformedResponse
	}

	out, err := parseCandidates(resp.Choices[0].Message.Content)
	if err != nil && c.logger != nil {
		c.logger.Warn("fallback returned unparseable payload", zap.Error(err))
	}
	return out, err
}

// parseCandidates turns the model reply into validated candidates. The reply
// may wrap the JSON array in prose; items that fail the same plausibility
// checks as the pattern stage are dropped, not errors.
func parseCandidates(raw string) ([]parser.Candidate, error) {
	raw = strings.TrimSpace(raw)
	if m := jsonArrayRe.FindString(raw); m != "" {
		raw = m
	}

	var items []inferredItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, parser.ErrMalformedResponse
	}

	out := make([]parser.Candidate, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		label := parser.CleanLabel(it.Name)
		if len([]rune(label)) < 3 {
			continue
		}
		price, err := decimal.NewFromString(it.Price.String())
		if err != nil || !parser.PlausiblePrice(label, price) {
			continue
		}
		key := parser.Normalize(label)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		p := price
		out = append(out, parser.Candidate{Label: label, Price: &p, Status: parser.StatusPriced})
	}
	return out, nil
}

func mapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return parser.ErrRateLimited
		case apierr.StatusCode >= 500:
			return parser.ErrUnavailable
		default:
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	// transport-level failure, worth retrying
	return parser.ErrUnavailable
}
