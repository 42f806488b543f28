package domain

import (
	"database/sql/driver"
	"fmt"
)

func scanEnum(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("null enum value")
	default:
		return "", fmt.Errorf("unsupported enum source %T", src)
	}
}

func enumValue(s string) (driver.Value, error) {
	return s, nil
}
