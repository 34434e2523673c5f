package topic

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

var (
	exerciseTypeTag  = "exercisetype"
	exerciseTypeText = "invalid exercise type"
)

// InitValidators registers topic validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(exerciseTypeTag, exerciseTypeValidation)
	core.RegisterCustomTranslation(validate, translator, exerciseTypeTag, exerciseTypeText)
}

// exerciseTypeValidation checks that the provided exercise type is in AllTypes
func exerciseTypeValidation(fl validator.FieldLevel) bool {
	typ := fl.Field().String()
	for _, t := range AllTypes {
		if typ == t {
			return true
		}
	}
	return false
}
