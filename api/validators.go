package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"taixiu/models"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the side and amount rules to gin's validator
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Warn("gin validator engine is not go-playground/validator, custom rules disabled")
			return
		}
		if err := v.RegisterValidation("side", validateSide); err != nil {
			log.WithError(err).Fatal("Failed to register side validator")
		}
		if err := v.RegisterValidation("amount", validateAmount); err != nil {
			log.WithError(err).Fatal("Failed to register amount validator")
		}
	})
}

// validateSide accepts high/low and the tai/xiu aliases
func validateSide(fl validator.FieldLevel) bool {
	_, err := models.ParseSide(fl.Field().String())
	return err == nil
}

// validateAmount accepts positive decimal strings with at most two decimal places
func validateAmount(fl validator.FieldLevel) bool {
	amount, err := models.ParseAmount(fl.Field().String())
	return err == nil && amount > 0
}
