package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Program-wide stats for the admin dashboard.
func GetLoyaltyDashboard(c *gin.Context) {
	var stats struct {
		TotalMembers    int64 `json:"total_members"`
		ActiveMembers   int64 `json:"active_members"`
		ArchivedMembers int64 `json:"archived_members"`
		CardsIssued     int64 `json:"cards_issued"`
		PointsLiability int64 `json:"points_liability"`
	}
	err := DB.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active AND NOT is_archived),
			COUNT(*) FILTER (WHERE is_archived),
			COUNT(*) FILTER (WHERE card_issued),
			COALESCE(SUM(current_points), 0)
		FROM loyalty_members`).
		Scan(&stats.TotalMembers, &stats.ActiveMembers, &stats.ArchivedMembers,
			&stats.CardsIssued, &stats.PointsLiability)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	type tierCount struct {
		Name    string `json:"name"`
		Color   string `json:"color"`
		Members int64  `json:"members"`
	}
	tierRows, err := DB.Query(`
		SELECT t.name, t.color, COUNT(m.id)
		FROM loyalty_tiers t
		LEFT JOIN loyalty_members m ON m.tier_id = t.id AND NOT m.is_archived
		WHERE t.is_active
		GROUP BY t.id, t.name, t.color
		ORDER BY MIN(t.min_points)`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tierRows.Close()

	tiers := []tierCount{}
	for tierRows.Next() {
		var t tierCount
		if err := tierRows.Scan(&t.Name, &t.Color, &t.Members); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		tiers = append(tiers, t)
	}

	var earned30d, redeemed30d int64
	err = DB.QueryRow(`
		SELECT
			COALESCE(SUM(points) FILTER (WHERE transaction_type IN ('earn', 'bonus') AND points > 0), 0),
			COALESCE(-SUM(points) FILTER (WHERE transaction_type IN ('redeem', 'redeem_product') AND points < 0), 0)
		FROM loyalty_transactions
		WHERE created_at >= now() - INTERVAL '30 days'`).
		Scan(&earned30d, &redeemed30d)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"members":           stats,
			"tiers":             tiers,
			"points_earned_30d": earned30d,
			"points_redeemed_30d": redeemed30d,
		},
	})
}
