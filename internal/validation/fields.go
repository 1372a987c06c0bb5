package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

var collectionSegment = regexp.MustCompile(`^([A-Za-z]+)\[(\d+)\](?:\.(.*))?$`)

// FieldValidator runs the struct-tag checks declared on the request model
// and reports them in the same positional shape as the cross-entity rules.
type FieldValidator struct {
	v *validator.Validate
}

// NewFieldValidator returns a validator that names fields by their JSON tag
// and compares decimals numerically.
func NewFieldValidator() *FieldValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	mustRegister(v, productTypeCodeTag, ProductTypeCodeFormat)
	mustRegister(v, currencyCodeTag, CurrencyFormat)
	return &FieldValidator{v: v}
}

// Tags for code fields. They share Constraints with the lookup guards, so a
// value the guards skip is always reported here.
const (
	productTypeCodeTag = "product_type_code"
	currencyCodeTag    = "currency_code"
)

func mustRegister(v *validator.Validate, tag string, c Constraints) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return IsValidFormat(fl.Field().String(), c)
	})
	if err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Check returns one error per failing field, in struct declaration order.
func (fv *FieldValidator) Check(req model.FacilityRequest) []model.ValidationError {
	err := fv.v.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []model.ValidationError{model.Unindexed(model.Overview, err.Error())}
	}

	out := make([]model.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, toValidationError(fe))
	}
	return out
}

func toValidationError(fe validator.FieldError) model.ValidationError {
	// Namespace is "FacilityRequest.obligations[1].currency"; drop the root.
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	msg := fmt.Sprintf("%s %s", dotted(path), describe(fe))

	if m := collectionSegment.FindStringSubmatch(path); m != nil {
		if i, err := strconv.Atoi(m[2]); err == nil {
			return model.Indexed(m[1], i, msg)
		}
	}
	return model.Unindexed(model.Overview, msg)
}

func dotted(path string) string {
	r := strings.NewReplacer("[", ".", "]", "")
	return r.Replace(path)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case productTypeCodeTag:
		return "must be exactly 3 digits"
	case currencyCodeTag:
		return "must be 3 uppercase letters"
	case "numeric":
		return "must contain only digits"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return "is invalid"
	}
}
