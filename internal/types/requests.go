package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinClaimLength is the shortest claim text accepted for verification.
const MinClaimLength = 10

var validate = validator.New()

// CreateClaimRequest represents a claim submission.
type CreateClaimRequest struct {
	ClaimText  string   `json:"claim_text" validate:"required"`
	SourceURLs []string `json:"source_urls,omitempty" validate:"omitempty,max=20,dive,url"`
}

// SubmitVerificationRequest represents a crowd verification.
type SubmitVerificationRequest struct {
	VerifierID string   `json:"verifier_id" validate:"required,max=128"`
	Verdict    string   `json:"verdict" validate:"required,oneof=true false mixed misleading unverified"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
}

// CreateClarificationRequest represents an externally created clarification.
type CreateClarificationRequest struct {
	StageIndex     *int           `json:"stage_index" validate:"required,gte=0"`
	Type           string         `json:"type" validate:"required,oneof=input multiple_choice value_confirmation action_confirmation custom"`
	Priority       string         `json:"priority" validate:"required,oneof=low medium high critical"`
	Title          string         `json:"title" validate:"required,max=200"`
	Description    string         `json:"description" validate:"max=4000"`
	Options        []string       `json:"options,omitempty" validate:"omitempty,dive,required"`
	DefaultValue   map[string]any `json:"default_value,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds" validate:"gte=0"`
}

// RespondClarificationRequest represents a human response to a clarification.
type RespondClarificationRequest struct {
	ResponseData map[string]any `json:"response_data" validate:"required"`
	ResponderID  string         `json:"responder_id" validate:"required,max=128"`
}

// CancelClarificationRequest carries an optional cancellation reason.
type CancelClarificationRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Validate validates the CreateClaimRequest using the validator.
// The minimum length check counts characters after trimming.
func (r *CreateClaimRequest) Validate(minLength int) error {
	if err := validate.Struct(r); err != nil {
		return ValidationErrorFrom(err)
	}
	if minLength <= 0 {
		minLength = MinClaimLength
	}
	if n := len([]rune(strings.TrimSpace(r.ClaimText))); n < minLength {
		return &ValidationError{
			Field:   "claim_text",
			Message: fmt.Sprintf("must be at least %d characters, got %d", minLength, n),
		}
	}
	return nil
}

// Validate validates the SubmitVerificationRequest using the validator.
func (r *SubmitVerificationRequest) Validate() error {
	return ValidationErrorFrom(validate.Struct(r))
}

// Validate validates the CreateClarificationRequest using the validator.
func (r *CreateClarificationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return ValidationErrorFrom(err)
	}
	if r.Type == ClarificationMultipleChoice && len(r.Options) < 2 {
		return &ValidationError{Field: "options", Message: "multiple_choice requires at least two options"}
	}
	return nil
}

// Validate validates the RespondClarificationRequest using the validator.
func (r *RespondClarificationRequest) Validate() error {
	return ValidationErrorFrom(validate.Struct(r))
}

// Validate validates the CancelClarificationRequest using the validator.
func (r *CancelClarificationRequest) Validate() error {
	return ValidationErrorFrom(validate.Struct(r))
}

// ValidationErrorFrom converts validator tag failures into a ValidationError
// naming the first offending field.
func ValidationErrorFrom(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "request", Message: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{
		Field:   jsonFieldName(fe.Namespace()),
		Message: describeTag(fe),
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// jsonFieldName turns "CreateClaimRequest.SourceURLs[0]" into "source_urls[0]".
func jsonFieldName(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	var sb strings.Builder
	for i, r := range namespace {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && namespace[i-1] >= 'a' && namespace[i-1] <= 'z'
			if prevLower {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
