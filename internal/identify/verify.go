package identify

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/database"
)

// VerifyResult is the outcome of a one-to-one check against a known subject.
type VerifyResult struct {
	Match      bool              `json:"match"`
	Distance   float64           `json:"distance"`
	Confidence float64           `json:"confidence"`
	Subject    *database.Subject `json:"subject"`
}

// Verifier answers "is this face subject X" questions.
type Verifier struct {
	store   database.Store
	matcher *biometric.Matcher
}

// NewVerifier creates a verifier over the given store.
func NewVerifier(store database.Store, matcher *biometric.Matcher) *Verifier {
	return &Verifier{store: store, matcher: matcher}
}

// VerifySubject compares a descriptor against every template of the subject
// and reports the best distance. The attempt is recorded in the access log.
func (v *Verifier) VerifySubject(ctx context.Context, subjectID int64, descriptor biometric.Descriptor) (*VerifyResult, error) {
	subject, err := v.store.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	templates, err := v.store.TemplatesBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("subject %d has no templates", subjectID)
	}

	best := math.Inf(1)
	for _, tpl := range templates {
		if d := biometric.Distance(descriptor, tpl.Descriptor); d < best {
			best = d
		}
	}

	result := &VerifyResult{
		Match:    best <= v.matcher.Threshold(),
		Distance: best,
		Subject:  subject,
	}
	if result.Match {
		result.Confidence = v.matcher.Confidence(best)
	}

	v.logAttempt(ctx, subjectID, result)
	return result, nil
}

func (v *Verifier) logAttempt(ctx context.Context, subjectID int64, result *VerifyResult) {
	entry := database.AccessLogEntry{
		AccessType: database.AccessVerification,
		Result:     database.AccessFailure,
	}
	if result.Match {
		entry.SubjectID = &subjectID
		entry.Result = database.AccessSuccess
		confidence := result.Confidence
		entry.Confidence = &confidence
	}
	if err := v.store.CreateAccessLog(ctx, entry); err != nil {
		log.Printf("Failed to write access log: %v", err)
	}
}
