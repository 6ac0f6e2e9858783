package storage

import (
	"errors"
	"strings"
)

var ErrInvalidKey = errors.New("storage: invalid key")

const maxKeyLength = 256

func validateKey(key string) error {
	if key == "" || len(key) > maxKeyLength || strings.TrimSpace(key) != key {
		return ErrInvalidKey
	}
	return nil
}
