package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Init shares gin's binding engine (tag name "binding") and registers the
// custom tags:
//
//	positive_decimal  decimal.Decimal (or decimal string) greater than zero
//	decimal           string parseable as a decimal
func Init() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
			v.SetTagName("binding")
		}
		// decimal.Decimal is validated as its string form
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("positive_decimal", positiveDecimal)
		_ = v.RegisterValidation("decimal", isDecimal)
		validate = v
	})
}

// Struct validates s with the shared engine.
func Struct(s interface{}) error {
	Init()
	return validate.Struct(s)
}

func positiveDecimal(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case decimal.Decimal:
		return v.IsPositive()
	case string:
		d, err := decimal.NewFromString(v)
		return err == nil && d.IsPositive()
	}
	return false
}

func isDecimal(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			param := e.Param()

			switch tag {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, param))
			case "positive_decimal":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be a positive decimal", field))
			case "decimal":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be a decimal", field))
			case "numeric":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be numeric", field))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be at most %s", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s failed %s", field, tag))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "invalid request"
}
