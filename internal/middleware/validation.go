package middleware

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	appvalidator "github.com/jwalitptl/medischedule-api/pkg/validator"
)

var (
	validationOnce sync.Once
	validationErr  error
)

// RegisterValidators installs the custom binding tags on gin's validator.
// Repeated calls are no-ops.
func RegisterValidators() error {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validationErr = fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
			return
		}
		validationErr = appvalidator.Register(v)
	})
	return validationErr
}
