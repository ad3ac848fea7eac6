package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Raw driver messages for unique-constraint violations, matched as a
// fallback when gorm's TranslateError has not mapped the error.
var duplicateKeyFragments = []string{
	"duplicate key value violates unique constraint", // postgres, 23505
	"Error 1062",                                     // mysql
	"UNIQUE constraint failed",                       // sqlite
}

// IsDuplicateKeyErr reports whether err is a unique-constraint violation
// on any supported dialect. Repositories use it to turn key collisions
// into domain sentinels instead of leaking driver errors.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	for _, fragment := range duplicateKeyFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
