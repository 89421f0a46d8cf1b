package service

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

// uploadKeyPrefix is the namespace every object key lives under.
const uploadKeyPrefix = "uploads"

// MaxFileNameBytes bounds both the stored filename and the key's last element.
// Most filesystems and the file_name column stop at 255.
const MaxFileNameBytes = 255

// DeriveObjectKey maps a transaction id and a client-supplied filename to the
// storage key uploads/{transactionID}/{basename}. Directory components are
// dropped, with backslashes treated as separators too, so the result never
// escapes the transaction's own prefix.
func DeriveObjectKey(transactionID, fileName string) (string, error) {
	if strings.TrimSpace(transactionID) == "" {
		return "", fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	name, err := sanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(uploadKeyPrefix, transactionID, name), nil
}

func sanitizeFileName(fileName string) (string, error) {
	if strings.IndexFunc(fileName, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: filename contains control characters", ErrInvalidInput)
	}
	normalized := strings.ReplaceAll(fileName, `\`, "/")
	base := strings.TrimSpace(path.Base(normalized))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: filename %q has no usable name", ErrInvalidInput, fileName)
	}
	if len(base) > MaxFileNameBytes {
		return "", fmt.Errorf("%w: filename is longer than %d bytes", ErrInvalidInput, MaxFileNameBytes)
	}
	return base, nil
}
