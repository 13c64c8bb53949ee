// Package gemini implements a client for the Google Generative Language REST API.
// Every request is authenticated with the calling user's own API key — the
// server holds no key of its own, it only unseals and forwards each user's
// stored credential per request.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the production Generative Language API endpoint
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModel is the model used when none is configured
const DefaultModel = "gemini-flash-latest"

var (
	// ErrCredentialRejected means the upstream rejected the user's API key.
	// The stored credential is stale or wrong and must be re-entered.
	ErrCredentialRejected = errors.New("upstream rejected the API key")
	// ErrEmptyResponse means the model returned no usable candidates.
	ErrEmptyResponse = errors.New("model returned no content")
)

// Client is a client for the Generative Language API
type Client struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewClient creates a new Gemini client
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PhotoAnalysis is the structured result of analyzing a travel photo
type PhotoAnalysis struct {
	Subject   string   `json:"subject"`
	Sentiment string   `json:"sentiment"`
	Lighting  string   `json:"lighting"`
	Labels    []string `json:"labels"`
	Safety    string   `json:"safety"`
}

// SegmentMetadata is the photo analysis a story segment is built from. The
// fields mirror PhotoAnalysis so the analyze result can be passed straight
// back in.
type SegmentMetadata struct {
	Subject   string
	Sentiment string
	Lighting  string
	Labels    []string
}

// SegmentRequest describes one story segment to generate
type SegmentRequest struct {
	Metadata        SegmentMetadata
	Tone            string
	PreviousContext string
}

// generateContent wire types (request)

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// generateContent wire types (response)

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

const analyzePrompt = `Analyze this travel photo. Respond with only a JSON object, no prose, with exactly these fields:
{"subject": "main subject of the photo", "sentiment": "emotional tone", "lighting": "lighting conditions", "labels": ["up to five descriptive labels"], "safety": "safe or unsafe"}`

// AnalyzePhoto sends the image to the model and parses the structured analysis.
func (c *Client) AnalyzePhoto(ctx context.Context, apiKey string, imageData []byte, mimeType string) (*PhotoAnalysis, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: analyzePrompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(imageData),
				}},
			},
		}},
	}

	text, err := c.generate(ctx, apiKey, reqBody)
	if err != nil {
		return nil, err
	}

	var analysis PhotoAnalysis
	if err := json.Unmarshal([]byte(extractJSON(text)), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if len(analysis.Labels) > 5 {
		analysis.Labels = analysis.Labels[:5]
	}

	return &analysis, nil
}

// GenerateSegment asks the model for the next first-person story segment,
// built from the photo's structured analysis rather than a flat description
// so the prompt can tell the model to weave the mood and lighting into the
// scene instead of listing them.
func (c *Client) GenerateSegment(ctx context.Context, apiKey string, seg SegmentRequest) (string, error) {
	previous := seg.PreviousContext
	if previous == "" {
		previous = "The journey begins."
	}

	var prompt strings.Builder
	prompt.WriteString("You are a creative storyteller and travel enthusiast. Write a deeply personal, relatable, and evocative travel journal entry (2-3 sentences) based on this photo metadata:\n")
	fmt.Fprintf(&prompt, "- Focus: %s\n", seg.Metadata.Subject)
	fmt.Fprintf(&prompt, "- Mood/Atmosphere: %s\n", seg.Metadata.Sentiment)
	fmt.Fprintf(&prompt, "- Lighting: %s\n", seg.Metadata.Lighting)
	fmt.Fprintf(&prompt, "- Key Elements: %s\n", strings.Join(seg.Metadata.Labels, ", "))
	fmt.Fprintf(&prompt, "- Desired Tone: %s\n", seg.Tone)
	fmt.Fprintf(&prompt, "- Journey so far: %s\n", previous)
	prompt.WriteString(`
Guidelines:
1. Write in the FIRST PERSON ("I" or "We").
2. Do NOT just list the elements. Weave the lighting and mood into a natural experience.
3. Connect this moment to the "Journey so far" to keep the story cohesive.
4. Focus on the EMOTION and the SENSES (what it felt like to be there).

Return ONLY the narrative text.`)

	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{{Text: prompt.String()}},
		}},
	}

	text, err := c.generate(ctx, apiKey, reqBody)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}

// generate performs one generateContent call and returns the first candidate's text.
func (c *Client) generate(ctx context.Context, apiKey string, reqBody generateRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, c.Model)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The API key travels in a header, never in the URL, so it cannot leak
	// into access logs.
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call model: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read model response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: status %d", ErrCredentialRejected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var wrapped generateResponse
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil {
			if wrapped.Error.Status == "INVALID_ARGUMENT" && strings.Contains(strings.ToLower(wrapped.Error.Message), "api key") {
				return "", fmt.Errorf("%w: %s", ErrCredentialRejected, wrapped.Error.Message)
			}
			return "", fmt.Errorf("model request failed with status %d: %s", resp.StatusCode, wrapped.Error.Message)
		}
		return "", fmt.Errorf("model request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// extractJSON strips a markdown code fence from model output, if present.
// Models frequently wrap JSON answers in ```json ... ``` despite instructions.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
