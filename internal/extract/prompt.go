// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"
)

// extractionPromptTmpl is the prompt sent to the Claude API for each
// abstract. It instructs the model to extract typed entities and to report
// its own count so the response can be cross-checked.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a scholarly metadata extraction system. Analyze the following paper abstract and extract typed entities.

For each entity, identify:
- class: one of "method", "subject", "metric", "finding"
  - method: a technique, model, protocol, or experimental design
  - subject: an organism, system, population, or material under study
  - metric: a measured quantity or statistical outcome
  - finding: a conclusion or reported effect
- text: the exact phrase from the abstract (preserve original wording, do not paraphrase)
- attributes: an object of free-form string key/value qualifiers (e.g. {"unit": "mg/L"}), or an empty object

Respond with a JSON object containing an "extractions" array and an "extraction_count" integer equal to the array length. Do not include any text outside the JSON object.

Example response:
{"extractions": [{"class": "metric", "text": "nitrogen uptake increased by 12%", "attributes": {"direction": "increase"}}], "extraction_count": 1}

Abstract:
{{.Abstract}}
`))

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Claude API to extract entities from an abstract.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Extract calls the Claude API with the extraction prompt for one abstract.
func (c *ClaudeBackend) Extract(ctx context.Context, abstract string) (AIResponse, error) {
	prompt, err := renderPrompt(abstract)
	if err != nil {
		return AIResponse{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: 4096,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AIResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return AIResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return AIResponse{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return AIResponse{}, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return AIResponse{}, fmt.Errorf("decoding Claude response: %w", err)
	}

	if len(cResp.Content) == 0 {
		return AIResponse{}, fmt.Errorf("Claude API returned empty content")
	}

	var aiResp AIResponse
	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		if err := json.Unmarshal([]byte(block.Text), &aiResp); err != nil {
			return AIResponse{}, fmt.Errorf("parsing AI response JSON: %w", err)
		}
		return aiResp, nil
	}

	return AIResponse{}, fmt.Errorf("no text content in Claude API response")
}

// renderPrompt executes the extraction prompt template with the given abstract.
func renderPrompt(abstract string) (string, error) {
	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, struct{ Abstract string }{Abstract: abstract}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
