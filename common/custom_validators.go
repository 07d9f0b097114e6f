package common

import (
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validateMongoId(fl validator.FieldLevel) bool {
	_, err := primitive.ObjectIDFromHex(fl.Field().String())
	return err == nil
}

func validateBlockchainId(fl validator.FieldLevel) bool {
	_, ok := BlockchainsMap[fl.Field().String()]
	return ok
}

// validateChainAddress shape-checks destination addresses for EVM chains; for
// everything else the broadcast gateway is the authority.
func validateChainAddress(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	if addr == "" {
		return false
	}
	if len(addr) >= 2 && addr[0] == '0' && (addr[1] == 'x' || addr[1] == 'X') {
		return ethcommon.IsHexAddress(addr)
	}
	return true
}

func SetupCustomValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		for name, fn := range map[string]validator.Func{
			"object_id":     validateMongoId,
			"blockchain_id": validateBlockchainId,
			"chain_address": validateChainAddress,
		} {
			if err := v.RegisterValidation(name, fn); err != nil {
				ForceExit("Failed to init custom validator " + name)
			}
		}
	}
}

func ForceExit(v interface{}) {
	log.Error(v)
	os.Exit(1)
}
