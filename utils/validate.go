package utils

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/saiset-co/sai-feed/types"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("fakultas", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			for _, f := range types.Faculties {
				if f == value {
					return true
				}
			}
			return false
		})
	})
	return validate
}

func ValidateStruct(s interface{}) error {
	if err := Validator().Struct(s); err != nil {
		return types.Errorf(types.ErrInvalidParameter, "%s", err.Error())
	}
	return nil
}
