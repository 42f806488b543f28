package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Category is the classification outcome for an inbound message.
type Category string

const (
	CategoryEmergency   Category = "EMERGENCY"
	CategoryService     Category = "SERVICE"
	CategoryMaintenance Category = "MAINTENANCE"
	CategoryInvoice     Category = "INVOICE"
	CategoryGeneric     Category = "GENERIC"
	CategoryUnknown     Category = "UNKNOWN"
)

// ParseCategory accepts the canonical names plus the AOG alias.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case "AOG":
		return CategoryEmergency, nil
	case "GENERAL":
		return CategoryGeneric, nil
	}
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	switch c {
	case CategoryEmergency, CategoryService, CategoryMaintenance, CategoryInvoice, CategoryGeneric, CategoryUnknown:
		return true
	}
	return false
}

// Key is the lower-case form used in contact directory files.
func (c Category) Key() string {
	return strings.ToLower(string(c))
}

func (c *Category) Scan(src any) error {
	s, err := scanEnum(src)
	if err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Category) Value() (driver.Value, error) {
	return enumValue(string(c))
}
