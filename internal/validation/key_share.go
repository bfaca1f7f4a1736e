package validation

import (
	"encoding/base64"
	"encoding/hex"

	validation "github.com/jellydator/validation"
)

// KeyShare accepts an unseal key share encoded as hex or standard base64.
var KeyShare = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_key_share_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	if _, err := hex.DecodeString(s); err == nil {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil && len(decoded) > 0 {
		return nil
	}
	return validation.NewError("validation_key_share", "must be a hex or base64 encoded key share")
})
