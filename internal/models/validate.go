package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}

// Validate checks v against its struct tags.
//
// Returns a [*ValidationError] naming each failing field as Struct.Field(tag).
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
	}
	return &ValidationError{Fields: fields}
}

// ValidatePacks validates each pack and returns the valid ones along with the errors for the rest.
func ValidatePacks(packs []Pack) ([]Pack, []error) {
	valid := make([]Pack, 0, len(packs))
	var errs []error
	for _, p := range packs {
		if err := Validate(p); err != nil {
			errs = append(errs, fmt.Errorf("pack %q: %w", p.ID, err))
			continue
		}
		valid = append(valid, p)
	}
	return valid, errs
}

// ValidateRecords validates each raw record, dropping the invalid ones.
func ValidateRecords(records []RawAdRecord) ([]RawAdRecord, []error) {
	valid := make([]RawAdRecord, 0, len(records))
	var errs []error
	for i, r := range records {
		if err := Validate(r); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		valid = append(valid, r)
	}
	return valid, errs
}
