package handlers

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/go-playground/validator/v10"
)

const npubPrefix = "npub"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("npub", validateNPub); err != nil {
		panic(err)
	}
	return v
}

// validateNPub проверяет публичный ключ nostr: bech32 с префиксом npub и 32 байтами данных
func validateNPub(fl validator.FieldLevel) bool {
	return IsNPub(fl.Field().String())
}

func IsNPub(s string) bool {
	if !strings.HasPrefix(s, npubPrefix+"1") {
		return false
	}
	hrp, data, err := bech32.Decode(s)
	if err != nil || hrp != npubPrefix {
		return false
	}
	key, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return false
	}
	return len(key) == 32
}
