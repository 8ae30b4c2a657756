package crypto

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/shanchoynoor/choynews-digest-bot/internal/cache"
	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
	"github.com/shanchoynoor/choynews-digest-bot/internal/ratelimit"
)

const (
	commentaryWordCap  = 80
	commentaryCacheKey = "market_commentary"
)

// CommentaryClient wraps the AI commentary provider, grounded on the
// teacher's internal/gemini.Client but narrowed to the short sentiment
// blurb spec.md §4.4 describes instead of translation.
type CommentaryClient struct {
	genaiClient *genai.Client
	cache       *cache.TTL[string]
	limiter     *ratelimit.Limiter
	minGap      time.Duration
	timeout     time.Duration
}

// NewCommentaryClient connects to the AI provider. apiKey comes from
// Config.AIAPIKey.
func NewCommentaryClient(ctx context.Context, apiKey string, minGap, timeout time.Duration) (*CommentaryClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create AI commentary client: %w", err)
	}

	limiter := ratelimit.New()
	limiter.Register("ai_commentary", rate.Every(minGap), 1)

	return &CommentaryClient{
		genaiClient: client,
		cache:       cache.New[string](),
		limiter:     limiter,
		minGap:      minGap,
		timeout:     timeout,
	}, nil
}

func (c *CommentaryClient) Close() {
	if c.genaiClient != nil {
		c.genaiClient.Close()
	}
}

// Commentary requests an at-most-80-word sentiment analysis and 24h
// directional bias for snapshot. Callers that arrive after a result is
// cached, within the minGap window, receive the cached result; callers
// that arrive while the first request is still in flight are denied by
// the rate limiter and receive the templated fallback, not the shared
// result. On failure or timeout it returns a deterministic templated
// fallback instead of an error, since losing AI commentary must not sink
// the whole digest.
func (c *CommentaryClient) Commentary(ctx context.Context, snap MarketSnapshot) string {
	if cached, ok := c.cache.Get(commentaryCacheKey); ok {
		return cached
	}

	if !c.limiter.Allow("ai_commentary") {
		return c.fallback(snap)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.generate(callCtx, snap)
	if err != nil {
		logger.Warn("AI commentary failed, using fallback", "error", err)
		text = c.fallback(snap)
	}

	c.cache.Set(commentaryCacheKey, text, c.minGap)
	return text
}

func (c *CommentaryClient) generate(ctx context.Context, snap MarketSnapshot) (string, error) {
	model := c.genaiClient.GenerativeModel("gemini-1.5-flash")
	model.SetTemperature(0.3)

	prompt := fmt.Sprintf(
		"You are a crypto market analyst. In at most %d words, give a sentiment "+
			"analysis and 24h directional bias for this snapshot. Total cap: $%.0f, "+
			"24h volume: $%.0f, fear/greed index: %d. Top gainer: %s (%.2f%%). "+
			"Top loser: %s (%.2f%%). Be concise, no preamble.",
		commentaryWordCap, snap.TotalCapUSD, snap.TotalVolumeUSD, snap.FearGreedIndex,
		snap.Gainers[0].Symbol, snap.Gainers[0].PctChange24h,
		snap.Losers[0].Symbol, snap.Losers[0].PctChange24h,
	)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty AI commentary response")
	}

	var text string
	if part, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		text = string(part)
	}
	return capWords(text, commentaryWordCap), nil
}

// fallback produces a deterministic templated blurb from the snapshot
// itself when the AI provider is unavailable (spec.md §4.4).
func (c *CommentaryClient) fallback(snap MarketSnapshot) string {
	return fmt.Sprintf(
		"%s. Fear/greed at %d. Top mover: %s %+.1f%%, weakest: %s %+.1f%%.",
		snap.FormatSummary(), snap.FearGreedIndex,
		snap.Gainers[0].Symbol, snap.Gainers[0].PctChange24h,
		snap.Losers[0].Symbol, snap.Losers[0].PctChange24h,
	)
}

func capWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:max], " ") + "…"
}
