package v1

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

var registerOnce sync.Once

// RegisterValidators adds the domain rules to gin's binding engine:
// movement_type and bin_action.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
			return
		}
		if err = v.RegisterValidation("movement_type", validateMovementType); err != nil {
			return
		}
		err = v.RegisterValidation("bin_action", validateBinAction)
	})
	return err
}

func validateMovementType(fl validator.FieldLevel) bool {
	return ledger.MovementType(fl.Field().String()).IsValid()
}

func validateBinAction(fl validator.FieldLevel) bool {
	return slices.Contains(dto.BinActions, fl.Field().String())
}
