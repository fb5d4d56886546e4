// Package ai generates the short motivational intro paragraph at the top of
// the weekly report. Generation goes through a local Ollama instance; any
// failure degrades to a canned message so the report always renders.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/formicag/ACEReportHub/internal/models"
)

type Client struct {
	BaseURL  string
	GenModel string
	HTTP     *http.Client
}

func NewClient(baseURL, genModel string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if genModel == "" {
		genModel = "llama3.2:latest"
	}
	return &Client{
		BaseURL:  baseURL,
		GenModel: genModel,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// GenerateIntro produces a two-to-three sentence intro for the report. On
// any transport or model failure it logs and returns FallbackIntro instead
// of an error.
func (c *Client) GenerateIntro(ctx context.Context, cur models.Metrics, prev *models.Metrics, cmp models.ComparisonResult) string {
	text, err := c.generate(ctx, buildPrompt(cur, prev, cmp))
	if err != nil {
		log.Printf("[AI] Intro generation failed, using fallback: %v", err)
		return FallbackIntro(cur, prev)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackIntro(cur, prev)
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  c.GenModel,
		Prompt: prompt,
		Stream: false,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status: %d", resp.StatusCode)
	}

	var parsedResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsedResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return parsedResp.Response, nil
}

func buildPrompt(cur models.Metrics, prev *models.Metrics, cmp models.ComparisonResult) string {
	var b strings.Builder
	b.WriteString("You write the opening paragraph of a weekly sales pipeline hygiene report for an AWS partner team. ")
	b.WriteString("Write 2-3 encouraging but factual sentences. No greetings, no sign-off, plain text only.\n\n")
	fmt.Fprintf(&b, "This week: %d open opportunities, %d stale (not updated in over 30 days), average age %.1f days, pipeline value $%.0f.\n",
		cur.TotalReportableOps, cur.StaleOpsCount, cur.AvgDaysSinceUpdate, cur.TotalARR)
	if cur.ConsecutiveWeeksNoStale > 0 {
		fmt.Fprintf(&b, "The team has kept the pipeline fully up to date for %d consecutive weeks.\n", cur.ConsecutiveWeeksNoStale)
	}
	if prev != nil {
		fmt.Fprintf(&b, "Last week: %d open, %d stale.\n", prev.TotalReportableOps, prev.StaleOpsCount)
	}
	fmt.Fprintf(&b, "Since the baseline: %d new opportunities, %d no longer open, %d status changes.\n",
		len(cmp.NewOps), len(cmp.NoLongerOpen), len(cmp.StatusChanges))
	return b.String()
}

// FallbackIntro picks a canned message from the stale trend when generation
// is unavailable.
func FallbackIntro(cur models.Metrics, prev *models.Metrics) string {
	switch {
	case cur.StaleOpsCount == 0 && cur.ConsecutiveWeeksNoStale >= 2:
		return fmt.Sprintf("Outstanding work, team! That's %d consecutive weeks with a fully up-to-date pipeline. This consistency is exactly what keeps our AWS partnership strong.", cur.ConsecutiveWeeksNoStale)
	case cur.StaleOpsCount == 0:
		return "Fantastic news: every opportunity in the pipeline is up to date this week. Let's keep the momentum going."
	case prev != nil && cur.StaleOpsCount < prev.StaleOpsCount:
		return fmt.Sprintf("Good progress this week: stale opportunities are down from %d to %d. A final push will get us to a fully clean pipeline.", prev.StaleOpsCount, cur.StaleOpsCount)
	case prev != nil && cur.StaleOpsCount > prev.StaleOpsCount:
		return fmt.Sprintf("Stale opportunities crept up from %d to %d this week. A quick update on each one will get us back on track.", prev.StaleOpsCount, cur.StaleOpsCount)
	default:
		return fmt.Sprintf("This week %d opportunities need an update. Keeping ACE current protects our co-sell pipeline, so please review the stale list below.", cur.StaleOpsCount)
	}
}
