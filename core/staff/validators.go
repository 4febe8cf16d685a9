package staff

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/makumbi/hudhurio/core"
)

var (
	// custom validation tags & texts
	rolesTag  = "staffroles"
	rolesText = "invalid roles"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(rolesTag, rolesValidation)
	core.RegisterCustomTranslation(validate, translator, rolesTag, rolesText)
}

func rolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if !knownRole(role) {
			return false
		}
	}
	return true
}

func knownRole(role string) bool {
	for _, known := range AllRoles {
		if role == known {
			return true
		}
	}
	return false
}
