// Package enrich derives a summary, tags and a category for a record's
// content, using an OpenAI-compatible chat-completions API when a key is
// configured and a local keyword heuristic otherwise.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Benioh/reflection-journal/internal/logging"
)

const (
	defaultBaseURL = "https://api.deepseek.com"
	defaultModel   = "deepseek-chat"

	// CategoryOther is the catch-all bucket.
	CategoryOther = "other"
)

// Analysis is the derived metadata for one piece of content.
type Analysis struct {
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

// Client analyzes content. The zero API key disables remote calls
// entirely; analysis then comes from the local heuristic.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	log     logging.Logger
}

func NewClient(apiKey, baseURL string, log logging.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   defaultModel,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With("component", "enrich"),
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You are a content analysis assistant. " +
	"Given a journal entry, respond with a JSON object containing " +
	`"summary" (one sentence, at most 50 characters), ` +
	`"tags" (3 to 5 short strings) and ` +
	`"category" (one of: tech, life, learning, work, thinking, other).`

// Analyze derives metadata for content. It never returns an error for
// remote trouble; any API failure falls back to the local heuristic so
// record creation is never blocked on the network.
func (c *Client) Analyze(ctx context.Context, content string) *Analysis {
	if c.apiKey == "" {
		return Fallback(content)
	}

	a, err := c.analyzeRemote(ctx, content)
	if err != nil {
		c.log.Warn(ctx, "remote analysis failed, using local heuristic", "error", err)
		return Fallback(content)
	}
	return a
}

func (c *Client) analyzeRemote(ctx context.Context, content string) (*Analysis, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze this entry:\n\n" + content},
		},
		Temperature:    0.7,
		MaxTokens:      500,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(data))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(stripFences(chat.Choices[0].Message.Content)), &a); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	if a.Category == "" {
		a.Category = CategoryOther
	}
	return &a, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var categoryKeywords = map[string][]string{
	"tech": {"code", "programming", "api", "database", "algorithm", "framework",
		"bug", "debug", "performance", "architecture", "deploy", "test", "server"},
	"life": {"life", "daily", "mood", "feeling", "family", "friend", "health",
		"exercise", "travel", "food", "rest"},
	"learning": {"learn", "study", "course", "book", "reading", "notes",
		"practice", "review", "exam", "progress"},
	"work": {"work", "project", "task", "meeting", "deadline", "plan", "team",
		"colleague", "client", "requirement", "delivery", "feedback"},
	"thinking": {"think", "idea", "opinion", "reflect", "retrospective", "goal",
		"value", "meaning", "choice", "decision"},
}

// Fallback analyzes content without any network call: the category with
// the most keyword hits wins, matched keywords become tags, and the first
// sentence becomes the summary.
func Fallback(content string) *Analysis {
	lower := strings.ToLower(content)

	scores := map[string]int{}
	var matched []string
	for category, kws := range categoryKeywords {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				scores[category]++
				matched = append(matched, kw)
			}
		}
	}

	category := CategoryOther
	best := 0
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic tie-break
	for _, name := range names {
		if scores[name] > best {
			best = scores[name]
			category = name
		}
	}

	sort.Strings(matched)
	matched = dedupe(matched)
	if len(matched) > 3 {
		matched = matched[:3]
	}
	tags := matched
	if len(tags) == 0 {
		tags = []string{category, "note"}
	}

	return &Analysis{
		Summary:  firstSentence(content, 50),
		Tags:     tags,
		Category: category,
	}
}

func dedupe(in []string) []string {
	out := in[:0]
	var prev string
	for i, s := range in {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}

// firstSentence returns the first sentence of s, truncated to max runes.
func firstSentence(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?\n"); i >= 0 {
		s = strings.TrimSpace(s[:i+1])
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}
