package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoyaltySetting is a typed key-value knob for the loyalty program
// (pesos_per_point, max_discount_percent, ...). Numeric settings carry
// optional min/max bounds enforced on update.
type LoyaltySetting struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	SettingKey     string     `json:"setting_key" db:"setting_key"`
	SettingValue   string     `json:"setting_value" db:"setting_value"`
	SettingType    string     `json:"setting_type" db:"setting_type"` // string, number, boolean
	MinValue       *float64   `json:"min_value" db:"min_value"`
	MaxValue       *float64   `json:"max_value" db:"max_value"`
	Description    *string    `json:"description" db:"description"`
	LastModifiedBy *uuid.UUID `json:"last_modified_by" db:"last_modified_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

func (LoyaltySetting) TableName() string {
	return "loyalty_settings"
}

func (LoyaltySetting) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS loyalty_settings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		setting_key TEXT UNIQUE NOT NULL,
		setting_value TEXT,
		setting_type TEXT DEFAULT 'string',
		min_value NUMERIC(10,2),
		max_value NUMERIC(10,2),
		description TEXT,
		last_modified_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);`
}

// NumberValue returns the setting as a float, 0 when not parseable.
func (s *LoyaltySetting) NumberValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.SettingValue), 64)
	if err != nil {
		return 0
	}
	return v
}

// BoolValue returns the setting as a boolean.
func (s *LoyaltySetting) BoolValue() bool {
	switch strings.ToLower(strings.TrimSpace(s.SettingValue)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// TypedValue returns the value converted per SettingType.
func (s *LoyaltySetting) TypedValue() interface{} {
	switch s.SettingType {
	case "number":
		return s.NumberValue()
	case "boolean":
		return s.BoolValue()
	}
	return s.SettingValue
}
