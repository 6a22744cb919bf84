// Package service contains the business logic of the portal.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (business) → validates, authorizes, orchestrates
//	Repository (data)  → reads/writes the database
//
// AUTHORIZATION LIVES HERE:
// Every service method that acts on behalf of a user takes the acting user
// (nil when anonymous) as its first argument after ctx and runs one of the
// auth.Require* gates before touching storage. Handlers never decide
// permissions themselves, so a new transport (CLI, job) gets the same rules.
//
// DEPENDENCY INJECTION:
// Services take repository interfaces, never *sqlite.DB. Tests pass hand-written
// fakes (see fakes_test.go).
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	"github.com/edulearn/portal/internal/apperror"
)

// VALIDATION:
// Input structs declare their rules with `validate` tags and the Dutch message
// shown to the user with a `msg` tag. check reports the first failing field.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json field names ("testName") instead of Go names ("TestName").
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates in and converts the first failure into an apperror.
func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("service: validating input: %w", err)
	}
	fe := verrs[0]
	return apperror.ValidationFailed(fe.Field(), messageFor(in, fe))
}

func messageFor(in any, fe validator.FieldError) string {
	t := reflect.TypeOf(in)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(fe.StructField()); ok {
		if msg := f.Tag.Get("msg"); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("%s is ongeldig", fe.Field())
}

// optional trims s and returns nil when nothing is left.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// orDefault returns def when s is blank.
func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
