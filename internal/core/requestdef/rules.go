package requestdef

import (
	"errors"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rules declares the constraints a payload must satisfy.
type Rules struct {
	// Fields maps a payload key to validator tags, e.g. "required,url".
	Fields map[string]string
	// ExactlyOne lists key groups of which exactly one key must be present.
	ExactlyOne [][]string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// integer accepts Go integers, integral floats (decoded JSON numbers)
	// and strings holding a base 10 integer.
	_ = v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		switch field.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		case reflect.Float32, reflect.Float64:
			f := field.Float()
			return f == math.Trunc(f) && !math.IsInf(f, 0)
		case reflect.String:
			_, err := strconv.ParseInt(strings.TrimSpace(field.String()), 10, 64)
			return err == nil
		default:
			return false
		}
	})
	return v
}

// Validate checks the payload of def against its rules. It never touches the network.
func Validate(def Definition) error {
	rules := def.Rules()
	payload := def.Payload()
	failed := map[string]string{}

	keys := make([]string, 0, len(rules.Fields))
	for k := range rules.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		err := validate.Var(payload[key], rules.Fields[key])
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			failed[key] = verrs[0].Tag()
		} else {
			failed[key] = err.Error()
		}
	}

	for _, group := range rules.ExactlyOne {
		present := 0
		for _, key := range group {
			if v, ok := payload[key]; ok && v != nil {
				present++
			}
		}
		if present != 1 {
			failed[strings.Join(group, "|")] = "exactly_one"
		}
	}

	if len(failed) > 0 {
		return &ValidationError{Definition: def, Fields: failed}
	}
	return nil
}
