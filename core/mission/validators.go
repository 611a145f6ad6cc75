package mission

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/siku/core"
)

var (
	clockTag  = "clock"
	clockText = "must be a time of day, eg: 08:30"

	cycleDayTag = "cycleday"
)

// InitValidators registers the mission validators; days is the length of the program cycle.
func InitValidators(validate *validator.Validate, translator ut.Translator, days int) {
	_ = validate.RegisterValidation(clockTag, clockValidation)
	core.RegisterCustomTranslation(validate, translator, clockTag, clockText)

	_ = validate.RegisterValidation(cycleDayTag, func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(days)
	})
	core.RegisterCustomTranslation(validate, translator, cycleDayTag, fmt.Sprintf("program days go from 1 to %d", days))
}

// clockValidation accepts any time of day ParseClock understands.
func clockValidation(fl validator.FieldLevel) bool {
	_, err := ParseClock(fl.Field().String())
	return err == nil
}
