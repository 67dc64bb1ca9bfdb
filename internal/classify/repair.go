package classify

import (
	"encoding/json"
	"strings"

	"github.com/civiclens/routing-server/internal/models"
)

// Placeholders used when the model's output is unusable. A complaint must
// always remain submittable, so these are never empty.
const (
	FallbackDepartment = "Unknown Department"
	FallbackEmail      = "public.grievance@gov.in"
)

type routePayload struct {
	Department string `json:"department"`
	Email      string `json:"email"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// RepairAndParse turns raw model text into a ClassificationResult. The model
// is instructed to emit bare JSON but is known to wrap it in fenced code
// blocks anyway, so fences are stripped before parsing. Unparsable output or
// missing required keys yield a fallback result, never an error.
func RepairAndParse(raw string) models.ClassificationResult {
	text := stripFences(strings.TrimSpace(raw))

	var payload routePayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Fallback()
	}
	if strings.TrimSpace(payload.Department) == "" || strings.TrimSpace(payload.Email) == "" {
		return Fallback()
	}

	return models.ClassificationResult{
		Department:      strings.TrimSpace(payload.Department),
		DepartmentEmail: strings.TrimSpace(payload.Email),
		Subject:         strings.TrimSpace(payload.Subject),
		Body:            payload.Body,
		Confidence:      models.ConfidenceModel,
	}
}

// Fallback returns the locally synthesized result used when the model errs.
// Subject and body are left empty for the composer to fill.
func Fallback() models.ClassificationResult {
	return models.ClassificationResult{
		Department:      FallbackDepartment,
		DepartmentEmail: FallbackEmail,
		Confidence:      models.ConfidenceFallback,
	}
}

// stripFences removes a surrounding Markdown code fence, with or without a
// language tag ("```json\n...\n```" or "```\n...\n```").
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = text[3:]
	// Drop the language tag up to the first newline.
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		tag := strings.TrimSpace(text[:idx])
		if tag == "" || isLanguageTag(tag) {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func isLanguageTag(tag string) bool {
	for _, r := range tag {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
