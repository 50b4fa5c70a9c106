package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`) // E.164
	tagRegex   = regexp.MustCompile(`^[a-z0-9_]+$`)
)

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("doc_status", validateDocStatus)
	_ = Validate.RegisterValidation("doc_side", validateDocSide)
	_ = Validate.RegisterValidation("doc_tag", validateDocTag)
	_ = Validate.RegisterValidation("phone", validatePhone)
}

// FieldError describes a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError aggregates every failed field of a struct.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// NewValidationError converts validator output into a ValidationError.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{Fields: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		out.Fields = append(out.Fields, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Rule:    fe.Tag(),
			Message: messageFor(fe),
		})
	}
	return out
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		return NewValidationError(validationErrors)
	}
	return err
}

func messageFor(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "doc_status":
		return fmt.Sprintf("%s must be one of pending, approved, rejected", field)
	case "doc_side":
		return fmt.Sprintf("%s must be front or back", field)
	case "doc_tag":
		return fmt.Sprintf("%s must contain only letters, digits and underscores", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validateDocStatus accepts the review statuses plus the "verified" alias.
func validateDocStatus(fl validator.FieldLevel) bool {
	return contains([]string{"pending", "approved", "rejected", "verified"}, fl.Field().String())
}

// validateDocSide allows an empty side; callers default it to front.
func validateDocSide(fl validator.FieldLevel) bool {
	side := strings.TrimSpace(fl.Field().String())
	return side == "" || contains([]string{"front", "back"}, side)
}

func validateDocTag(fl validator.FieldLevel) bool {
	return tagRegex.MatchString(strings.ToLower(strings.TrimSpace(fl.Field().String())))
}

func validatePhone(fl validator.FieldLevel) bool {
	return ValidatePhoneNumber(fl.Field().String())
}

// ValidatePhoneNumber validates phone number format
func ValidatePhoneNumber(phone string) bool {
	return phoneRegex.MatchString(strings.TrimSpace(phone))
}

func contains(slice []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
