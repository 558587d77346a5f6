package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"car-scraper/models"
)

// DefaultRadiusKm is applied when a filter payload carries no radiusKm.
const DefaultRadiusKm = 30

// ValidationError reports the first offending field of a filter payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid filters: " + e.Reason
	}
	return fmt.Sprintf("invalid filters: %s %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate turns a decoded JSON object into a FilterSpec, or returns a
// *ValidationError naming the offending field.
func Validate(payload any) (models.FilterSpec, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return models.FilterSpec{}, &ValidationError{Reason: "payload must be a JSON object"}
	}

	var spec models.FilterSpec
	var err error

	if spec.Brand, err = readString(m, "brand", true); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.Model, err = readString(m, "model", true); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.MinPrice, err = readInt(m, "minPrice", true, 0); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.MaxPrice, err = readInt(m, "maxPrice", true, 0); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.MinYear, err = readInt(m, "minYear", true, 0); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.MaxMileage, err = readInt(m, "maxMileage", true, 0); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.Region, err = readString(m, "region", true); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.City, err = readString(m, "city", false); err != nil {
		return models.FilterSpec{}, err
	}
	if spec.RadiusKm, err = readInt(m, "radiusKm", false, DefaultRadiusKm); err != nil {
		return models.FilterSpec{}, err
	}

	if err := ValidateSpec(spec); err != nil {
		return models.FilterSpec{}, err
	}
	return spec, nil
}

// ValidateSpec checks the range and cross-field rules of an already typed spec.
func ValidateSpec(spec models.FilterSpec) error {
	err := validate.Struct(spec)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}

	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be >= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "gtefield":
		return "must be greater than or equal to minPrice"
	default:
		return "failed rule " + fe.Tag()
	}
}

func readString(m map[string]any, key string, required bool) (string, error) {
	raw, present := m[key]
	if !present || raw == nil {
		if required {
			return "", &ValidationError{Field: key, Reason: "is required"}
		}
		return "", nil
	}

	s, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Field: key, Reason: "must be a string"}
	}
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", &ValidationError{Field: key, Reason: "is required"}
	}
	return s, nil
}

func readInt(m map[string]any, key string, required bool, fallback int) (int, error) {
	raw, present := m[key]
	if !present || raw == nil {
		if required {
			return 0, &ValidationError{Field: key, Reason: "is required"}
		}
		return fallback, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		return v, nil
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, &ValidationError{Field: key, Reason: "must be a number"}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &ValidationError{Field: key, Reason: "must be a number"}
		}
		f = parsed
	default:
		return 0, &ValidationError{Field: key, Reason: "must be a number"}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Field: key, Reason: "must be finite"}
	}
	if f != math.Trunc(f) {
		return 0, &ValidationError{Field: key, Reason: "must be an integer"}
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, &ValidationError{Field: key, Reason: "is out of range"}
	}
	return int(f), nil
}
