// Package validate implements request validation as per-field rule
// chains. Each field contributes at most one message (its first failing
// rule); all failing fields are collected and surfaced together so the
// client sees every problem at once.
package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var formats = validator.New()

// FieldError carries the message for a single failing field.
type FieldError struct {
	Message string `json:"message"`
}

// FieldErrors maps field names to their first failure.
type FieldErrors map[string]FieldError

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	return "invalid fields: " + strings.Join(names, ", ")
}

// Rule checks one constraint. Rules capture the value under test at
// schema build time.
type Rule func(ctx context.Context) error

type field struct {
	name  string
	rules []Rule
}

// Schema is an ordered set of per-field rule chains.
type Schema struct {
	fields []field
}

func New() *Schema {
	return &Schema{}
}

// Field appends a rule chain for one field.
func (s *Schema) Field(name string, rules ...Rule) *Schema {
	s.fields = append(s.fields, field{name: name, rules: rules})
	return s
}

// Validate runs every field's chain and returns the collected failures,
// or nil when everything passes.
func (s *Schema) Validate(ctx context.Context) FieldErrors {
	var failed FieldErrors
	for _, f := range s.fields {
		for _, rule := range f.rules {
			if err := rule(ctx); err != nil {
				if failed == nil {
					failed = FieldErrors{}
				}
				failed[f.name] = FieldError{Message: err.Error()}
				break
			}
		}
	}
	return failed
}

// Required fails on empty or whitespace-only values.
func Required(value string) Rule {
	return func(context.Context) error {
		if strings.TrimSpace(value) == "" {
			return errors.New("is required")
		}
		return nil
	}
}

// Length bounds the value's length in characters, not bytes. Empty
// values pass so the rule composes with Required.
func Length(value string, min, max int) Rule {
	return func(context.Context) error {
		if value == "" {
			return nil
		}
		if n := utf8.RuneCountInString(value); n < min || n > max {
			return fmt.Errorf("length must be between %d and %d", min, max)
		}
		return nil
	}
}

// Range bounds an integer value inclusively.
func Range(value, min, max int) Rule {
	return func(context.Context) error {
		if value < min || value > max {
			return fmt.Errorf("must be between %d and %d", min, max)
		}
		return nil
	}
}

// Positive requires a value greater than zero.
func Positive(value float64) Rule {
	return func(context.Context) error {
		if value <= 0 {
			return errors.New("must be greater than zero")
		}
		return nil
	}
}

// OneOf requires the value to be a member of the allowed set. Empty
// values pass so the rule composes with Required.
func OneOf(value string, allowed ...string) Rule {
	return func(context.Context) error {
		if value == "" {
			return nil
		}
		for _, candidate := range allowed {
			if value == candidate {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

// Email requires a syntactically valid email address. Empty values pass
// so the rule composes with Required.
func Email(value string) Rule {
	return func(context.Context) error {
		if value == "" {
			return nil
		}
		if err := formats.Var(value, "email"); err != nil {
			return errors.New("must be a valid email")
		}
		return nil
	}
}

// URL requires a syntactically valid URL. Empty values pass so the rule
// composes with Required.
func URL(value string) Rule {
	return func(context.Context) error {
		if value == "" {
			return nil
		}
		if err := formats.Var(value, "url"); err != nil {
			return errors.New("must be a valid url")
		}
		return nil
	}
}

// ObjectID requires a valid hex object id.
func ObjectID(value string) Rule {
	return func(context.Context) error {
		if _, err := primitive.ObjectIDFromHex(value); err != nil {
			return errors.New("must be a valid id")
		}
		return nil
	}
}

// Equal enforces cross-field equality, e.g. password confirmation.
func Equal(value, other, message string) Rule {
	return func(context.Context) error {
		if value != other {
			return errors.New(message)
		}
		return nil
	}
}

// Func adapts an arbitrary check, typically a database lookup, into a
// rule. The returned error's message becomes the field message.
func Func(fn func(ctx context.Context) error) Rule {
	return Rule(fn)
}
