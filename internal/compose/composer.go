// Package compose derives the final email fields for a complaint from the
// routing decision, synthesizing a formal body when the model did not
// supply one.
package compose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/civiclens/routing-server/internal/models"
)

// DefaultSubject is used when neither the model nor the caller supplied one.
const DefaultSubject = "Complaint Regarding Public Issue"

// Compose merges a classification result with the resolved address into a
// submittable draft. Model-provided subject/body are used verbatim; gaps are
// filled with a synthesized formal complaint carrying the address, raw
// coordinates, issue text, and the principal's signature.
func Compose(result models.ClassificationResult, address models.ResolvedAddress, issue string, principal models.Principal) models.Draft {
	draft := models.Draft{
		DeptName:    result.Department,
		DeptMail:    result.DepartmentEmail,
		Subject:     strings.TrimSpace(result.Subject),
		Body:        result.Body,
		Location:    address.Formatted,
		Coordinates: address.Raw,
		Confidence:  result.Confidence,
	}

	if draft.Subject == "" {
		draft.Subject = DefaultSubject
	}
	if strings.TrimSpace(draft.Body) == "" {
		draft.Body = synthesizeBody(result.Department, address, issue, principal)
	}
	return draft
}

// synthesizeBody builds the fallback complaint email: salutation, issue and
// location paragraph with coordinates on their own line, request for action,
// and a signature block.
func synthesizeBody(department string, address models.ResolvedAddress, issue string, principal models.Principal) string {
	if strings.TrimSpace(department) == "" {
		department = "Sir/Madam"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", department)
	fmt.Fprintf(&b, "I would like to bring to your attention the following civic issue: %s\n\n", strings.TrimSpace(issue))
	fmt.Fprintf(&b, "The issue is located at: %s\n", address.Formatted)
	lat := strconv.FormatFloat(address.Raw.Lat, 'f', -1, 64)
	lon := strconv.FormatFloat(address.Raw.Lon, 'f', -1, 64)
	fmt.Fprintf(&b, "Coordinates: %s, %s\n\n", lat, lon)
	b.WriteString("I request you to kindly look into this matter and take the necessary action at the earliest.\n\n")
	b.WriteString("Sincerely,\n")
	fmt.Fprintf(&b, "%s\n%s\n", principal.Name, principal.Email)
	return b.String()
}
