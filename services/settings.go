package services

import (
	"database/sql"
	"strconv"
	"strings"
)

// DefaultPesosPerPoint is used when the setting is missing or invalid.
const DefaultPesosPerPoint = 10.0

// GetSettingNumber reads a numeric loyalty setting, falling back to def
// when the key is missing or not a number.
func GetSettingNumber(q Querier, key string, def float64) float64 {
	var raw string
	err := q.QueryRow(`SELECT setting_value FROM loyalty_settings WHERE setting_key = $1`, key).Scan(&raw)
	if err != nil {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return def
	}
	return v
}

// GetSettingBool reads a boolean loyalty setting.
func GetSettingBool(q Querier, key string, def bool) bool {
	var raw string
	err := q.QueryRow(`SELECT setting_value FROM loyalty_settings WHERE setting_key = $1`, key).Scan(&raw)
	if err == sql.ErrNoRows || err != nil {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}

// PesosPerPoint returns the configured exchange rate, clamping zero and
// negative values to the default to avoid division errors.
func PesosPerPoint(q Querier) float64 {
	v := GetSettingNumber(q, "pesos_per_point", DefaultPesosPerPoint)
	if v <= 0 {
		return DefaultPesosPerPoint
	}
	return v
}
