package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"vcspos-server/models"

	"github.com/gin-gonic/gin"
)

func scanSetting(scan func(dest ...interface{}) error) (*models.LoyaltySetting, error) {
	var s models.LoyaltySetting
	err := scan(&s.ID, &s.SettingKey, &s.SettingValue, &s.SettingType,
		&s.MinValue, &s.MaxValue, &s.Description, &s.LastModifiedBy,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const settingColumns = `id, setting_key, COALESCE(setting_value, ''), COALESCE(setting_type, 'string'),
	min_value, max_value, description, last_modified_by, created_at, updated_at`

func ListLoyaltySettings(c *gin.Context) {
	rows, err := DB.Query(`SELECT ` + settingColumns + ` FROM loyalty_settings ORDER BY setting_key`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	settings := []gin.H{}
	for rows.Next() {
		s, err := scanSetting(rows.Scan)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		settings = append(settings, gin.H{
			"id":            s.ID,
			"setting_key":   s.SettingKey,
			"setting_value": s.TypedValue(),
			"setting_type":  s.SettingType,
			"min_value":     s.MinValue,
			"max_value":     s.MaxValue,
			"description":   s.Description,
			"updated_at":    s.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"settings": settings}})
}

func GetLoyaltySetting(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	row := DB.QueryRow(`SELECT `+settingColumns+` FROM loyalty_settings WHERE setting_key = $1`, key)
	s, err := scanSetting(row.Scan)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Setting not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"setting_key":   s.SettingKey,
			"setting_value": s.TypedValue(),
			"setting_type":  s.SettingType,
		},
	})
}

// Change a setting's value. Numeric settings are validated against
// their min/max bounds; types are enforced before the write.
func UpdateLoyaltySetting(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))

	var req struct {
		Value interface{} `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Value is required"})
		return
	}

	row := DB.QueryRow(`SELECT `+settingColumns+` FROM loyalty_settings WHERE setting_key = $1`, key)
	s, err := scanSetting(row.Scan)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Setting not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	var stored string
	switch s.SettingType {
	case "number":
		num, ok := req.Value.(float64)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Setting expects a number"})
			return
		}
		if s.MinValue != nil && num < *s.MinValue {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Value is below the allowed minimum"})
			return
		}
		if s.MaxValue != nil && num > *s.MaxValue {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Value is above the allowed maximum"})
			return
		}
		stored = strconv.FormatFloat(num, 'f', -1, 64)
	case "boolean":
		b, ok := req.Value.(bool)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Setting expects a boolean"})
			return
		}
		stored = strconv.FormatBool(b)
	default:
		str, ok := req.Value.(string)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Setting expects a string"})
			return
		}
		stored = str
	}

	actorID := currentUserID(c)
	_, err = DB.Exec(`
		UPDATE loyalty_settings
		SET setting_value = $1, last_modified_by = $2, updated_at = now()
		WHERE setting_key = $3`, stored, actorID, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	logActivity(&actorID, "loyalty.setting_update", "loyalty_setting", key, map[string]interface{}{
		"value": req.Value,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Setting updated"})
}
