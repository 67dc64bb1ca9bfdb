// Package classify routes complaints to government departments using the
// Gemini generative API with a JSON-constrained prompt, and describes issue
// photos via the same model's vision input. Model output is always treated
// as untrusted: see RepairAndParse.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/civiclens/routing-server/internal/apperrors"
	"github.com/civiclens/routing-server/internal/models"
	"go.uber.org/zap"
)

// Router asks the generative model which department should receive a
// complaint. Read-only with respect to storage.
type Router struct {
	client  *http.Client
	apiKey  string
	base    string
	model   string
	backoff time.Duration
	logger  *zap.SugaredLogger
}

// NewRouter creates a department router.
func NewRouter(client *http.Client, apiKey, baseURL, model string, logger *zap.SugaredLogger) *Router {
	if client == nil {
		client = http.DefaultClient
	}
	return &Router{client: client, apiKey: apiKey, base: baseURL, model: model, backoff: 2 * time.Second, logger: logger}
}

// Classify routes one complaint. Unusable model output degrades to a
// fallback result; only missing inputs or an unreachable upstream (after a
// single backed-off retry) are returned as errors.
func (rt *Router) Classify(ctx context.Context, address models.ResolvedAddress, issue string, principal models.Principal) (models.ClassificationResult, error) {
	if strings.TrimSpace(address.Formatted) == "" {
		return models.ClassificationResult{}, apperrors.NewInvalidInput("address", "resolved address is required")
	}
	if strings.TrimSpace(issue) == "" {
		return models.ClassificationResult{}, apperrors.NewInvalidInput("issueDescription", "issue description is required")
	}

	prompt := buildRoutePrompt(address.Formatted, issue, principal)

	text, err := rt.generate(ctx, []part{{Text: prompt}})
	if err != nil {
		var upstream *apperrors.UpstreamError
		if errors.As(err, &upstream) && upstream.Status == 0 {
			// Network-level failure: the model call is idempotent, retry
			// once with backoff before giving up.
			select {
			case <-ctx.Done():
				return models.ClassificationResult{}, ctx.Err()
			case <-time.After(rt.backoff):
			}
			text, err = rt.generate(ctx, []part{{Text: prompt}})
		}
		if err != nil {
			return models.ClassificationResult{}, err
		}
	}

	result := RepairAndParse(text)
	if result.Confidence == models.ConfidenceFallback {
		rt.logger.Warnw("Model output unusable, using fallback classification", "raw", truncate(text, 200))
	}
	return result, nil
}

// DescribeImage turns an uploaded photo into a natural-language issue
// description (the optional upstream stage before classification).
func (rt *Router) DescribeImage(ctx context.Context, base64Image, mimeType string) (string, error) {
	if base64Image == "" {
		return "", apperrors.NewInvalidInput("image", "image data is required")
	}
	if mimeType == "" {
		return "", apperrors.NewInvalidInput("mimeType", "image mime type is required")
	}

	parts := []part{
		{InlineData: &inlineData{MimeType: mimeType, Data: base64Image}},
		{Text: describePrompt},
	}
	text, err := rt.generate(ctx, parts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewUpstream("classification", 0, errors.New("empty model response"))
	}
	return text, nil
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

func (rt *Router) generate(ctx context.Context, parts []part) (string, error) {
	body := generateRequest{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: generationConfig{Temperature: 0, MaxOutputTokens: 512},
	}
	// JSON mode only applies to the routing prompt; the vision stage
	// returns free text.
	if parts[0].InlineData == nil {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	buf, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", rt.base, rt.model, rt.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rt.client.Do(req)
	if err != nil {
		return "", apperrors.NewUpstream("classification", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.NewUpstream("classification", resp.StatusCode, fmt.Errorf("%s", snippet))
	}

	var wrapper struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return "", apperrors.NewUpstream("classification", resp.StatusCode, err)
	}
	if len(wrapper.Candidates) == 0 || len(wrapper.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.NewUpstream("classification", resp.StatusCode, errors.New("empty candidates"))
	}
	return wrapper.Candidates[0].Content.Parts[0].Text, nil
}

const describePrompt = `Describe in detail the issue shown in this image. Be specific about the type of public concern it represents (e.g., pothole, open drain, broken footpath, garbage dump, encroachment, waterlogging). Analyze the type of road and its surroundings (main road or colony, commercial or residential). Determine whether this falls under PWD or MCD jurisdiction. Finally, write a complaint/report template with issue, location, urgency, and department.`

func buildRoutePrompt(address, issue string, principal models.Principal) string {
	var b strings.Builder
	b.WriteString("You are an AI that routes public complaints in India to the correct government department.\n\n")
	b.WriteString("Analyze the complaint and output a valid JSON object only, with these fields:\n")
	b.WriteString(`{"department": "Responsible department or authority name", "email": "Official email address", "subject": "Formal complaint subject line", "body": "Formal complaint email body"}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Department must be official and accurate (Municipal Corporation, PWD, NHAI, Jal Board, Electricity Board, etc.).\n")
	b.WriteString("- Email must be an official/public contact (gov.in, nic.in, or utility domain).\n")
	b.WriteString("- The body must state the issue and the location, and end with a signature block for the complainant below.\n")
	b.WriteString("- DO NOT include any explanations, markdown, or text outside JSON.\n\n")
	fmt.Fprintf(&b, "Complaint:\n- Location: %q\n- Issue: %q\n", address, issue)
	fmt.Fprintf(&b, "- Complainant: %s <%s>\n", principal.Name, principal.Email)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
