package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vcspos-server/config"
	"vcspos-server/models"
	"vcspos-server/services"
	"vcspos-server/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const memberTokenLifetime = 30 * 24 * time.Hour

func generateMemberToken(memberID uuid.UUID, memberNumber string) (string, error) {
	claims := jwt.MapClaims{
		"member_id":     memberID.String(),
		"member_number": memberNumber,
		"role":          MemberRole,
		"exp":           time.Now().Add(memberTokenLifetime).Unix(),
		"iat":           time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// appMember is the slice of member state the app login needs.
type appMember struct {
	models.LoyaltyMember
	CustomerName  string
	CustomerEmail *string
	CustomerPhone *string
}

func findAppMember(where string, args ...interface{}) (*appMember, error) {
	var m appMember
	err := DB.QueryRow(`
		SELECT m.id, m.customer_id, m.member_number, m.card_barcode, m.card_status,
		       m.current_points, m.lifetime_points,
		       m.is_active, m.is_archived, m.archived_at, m.deactivated_at, m.activated_at,
		       m.last_active_at, m.reactivation_remaining, m.created_at,
		       c.name, c.email, c.phone
		FROM loyalty_members m
		JOIN customers c ON c.id = m.customer_id
		WHERE `+where, args...).
		Scan(&m.ID, &m.CustomerID, &m.MemberNumber, &m.CardBarcode, &m.CardStatus,
			&m.CurrentPoints, &m.LifetimePoints,
			&m.IsActive, &m.IsArchived, &m.ArchivedAt, &m.DeactivatedAt, &m.ActivatedAt,
			&m.LastActiveAt, &m.ReactivationRemaining, &m.CreatedAt,
			&m.CustomerName, &m.CustomerEmail, &m.CustomerPhone)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func findMemberByCredentials(memberNumber, phone string) (*appMember, error) {
	variants := utils.PhoneVariants(phone, config.AppConfig.SMSCountryCode)
	if len(variants) == 0 {
		return nil, sql.ErrNoRows
	}
	return findAppMember(`m.member_number = $1 AND c.phone = ANY($2)`,
		strings.ToUpper(strings.TrimSpace(memberNumber)), pq.Array(variants))
}

// Request a login code for the member app.
func RequestLoginCode(c *gin.Context) {
	var req struct {
		MemberNumber string `json:"member_number" binding:"required"`
		Phone        string `json:"phone" binding:"required"`
		Channel      string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Member number and phone are required"})
		return
	}

	phone := utils.NormalizePhone(req.Phone)
	if !utils.ValidPhone(phone) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone must be 11-12 digits"})
		return
	}

	member, err := findMemberByCredentials(req.MemberNumber, phone)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid member credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	// No point sending a code to a member who cannot sign in anyway.
	if err := services.LoginEligibility(&member.LoyaltyMember); err != nil {
		rejectIneligibleMember(c, err)
		return
	}

	email := ""
	if member.CustomerEmail != nil {
		email = *member.CustomerEmail
	}
	issued, err := OTP.Request(c.Request.Context(), member.ID, member.MemberNumber, phone, email, req.Channel)
	if err != nil {
		status, code, msg := otpErrorResponse(err)
		c.JSON(status, gin.H{"success": false, "error": code, "message": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Verification code sent",
		"data":    issued,
	})
}

func rejectIneligibleMember(c *gin.Context, err error) {
	switch err {
	case services.ErrCardNotActive:
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "card_not_active",
			"message": "This card has been deactivated. Please visit the store.",
		})
	case services.ErrReactivationLimit:
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "activation_limit_reached",
			"message": "Reactivation limit reached. Please visit the store to restore your membership.",
		})
	default:
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "This membership cannot sign in"})
	}
}

func otpErrorResponse(err error) (int, string, string) {
	switch err {
	case services.ErrOTPRateLimited:
		return http.StatusTooManyRequests, "otp_rate_limited", "Too many code requests. Please wait a few minutes."
	case services.ErrOTPChannelInvalid:
		return http.StatusBadRequest, "otp_channel_invalid", "Requested delivery channel is not available"
	case services.ErrOTPSendFailed:
		return http.StatusBadGateway, "otp_provider_failed", "Could not send the verification code. Please try again."
	case services.ErrOTPNotFound:
		return http.StatusUnauthorized, "otp_invalid", "Verification code not found or already used"
	case services.ErrOTPExpired:
		return http.StatusUnauthorized, "otp_expired", "Verification code expired. Request a new one."
	case services.ErrOTPLocked:
		return http.StatusUnauthorized, "otp_locked", "Too many failed attempts. Request a new code."
	case services.ErrOTPInvalid:
		return http.StatusUnauthorized, "otp_invalid", "Incorrect verification code"
	case services.ErrOTPMismatch:
		return http.StatusUnauthorized, "otp_mismatch", "Verification code does not belong to this member"
	}
	return http.StatusInternalServerError, "", "Verification failed"
}

// Member app login. Two paths:
//   - card barcode scan, trusted as possession of the physical card
//   - member number + phone, which must be confirmed with a one-time code
//
// An inactive or archived member logging in is reactivated, consuming
// one unit of the self-reactivation budget.
func MemberLogin(c *gin.Context) {
	var req struct {
		CardBarcode  string `json:"card_barcode"`
		MemberNumber string `json:"member_number"`
		Phone        string `json:"phone"`
		OTPRef       string `json:"otp_ref"`
		OTPCode      string `json:"otp_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request format"})
		return
	}

	req.CardBarcode = strings.TrimSpace(req.CardBarcode)

	var member *appMember
	var err error
	var phone string

	switch {
	case req.CardBarcode != "":
		member, err = findAppMember(`m.card_barcode = $1`, req.CardBarcode)
	case req.MemberNumber != "" && req.Phone != "":
		phone = utils.NormalizePhone(req.Phone)
		if !utils.ValidPhone(phone) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone must be 11-12 digits"})
			return
		}
		member, err = findMemberByCredentials(req.MemberNumber, phone)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Provide a card barcode, or member number and phone"})
		return
	}

	if err == sql.ErrNoRows {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid member credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if err := services.LoginEligibility(&member.LoyaltyMember); err != nil {
		rejectIneligibleMember(c, err)
		return
	}

	// The credentials path needs a verified one-time code; card
	// possession stands in for it on the barcode path.
	if req.CardBarcode == "" {
		if req.OTPRef == "" || req.OTPCode == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "otp_required",
				"message": "A verification code is required to sign in",
			})
			return
		}
		if err := OTP.Verify(c.Request.Context(), req.OTPRef, member.ID, phone, req.OTPCode); err != nil {
			status, code, msg := otpErrorResponse(err)
			c.JSON(status, gin.H{"success": false, "error": code, "message": msg})
			return
		}
	}

	now := time.Now()
	if !member.IsActive || member.IsArchived {
		if err := services.SelfReactivate(&member.LoyaltyMember, now); err != nil {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "activation_limit_reached",
				"message": "Reactivation limit reached. Please visit the store to restore your membership.",
			})
			return
		}
		_, err = DB.Exec(`
			UPDATE loyalty_members
			SET is_active = TRUE, is_archived = FALSE, archived_at = NULL, deactivated_at = NULL,
			    reactivation_remaining = $1, activated_at = COALESCE(activated_at, $2),
			    last_active_at = $2, updated_at = $2
			WHERE id = $3`,
			member.ReactivationRemaining, now, member.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		log.Info().
			Str("member_number", member.MemberNumber).
			Int("remaining", member.ReactivationRemaining).
			Msg("member self-reactivated")
	} else {
		_, err = DB.Exec(`
			UPDATE loyalty_members
			SET activated_at = COALESCE(activated_at, $1), last_active_at = $1, updated_at = $1
			WHERE id = $2`, now, member.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
	}

	token, err := generateMemberToken(member.ID, member.MemberNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token": token,
			"member": gin.H{
				"id":             member.ID,
				"member_number":  member.MemberNumber,
				"name":           member.CustomerName,
				"current_points": member.CurrentPoints,
			},
		},
	})
}

// Member profile for the app home screen. Viewing it counts as
// activity for the dormancy clock.
func GetMemberProfile(c *gin.Context) {
	memberID := currentMemberID(c)

	_, _ = DB.Exec(`UPDATE loyalty_members SET last_active_at = now() WHERE id = $1 AND is_active`, memberID)

	m, err := loadMember("m.id = $1", memberID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	var tier gin.H
	if m.TierID != nil {
		var t models.LoyaltyTier
		err := DB.QueryRow(`
			SELECT name, min_points, max_points, discount_percent, points_multiplier, color
			FROM loyalty_tiers WHERE id = $1`, *m.TierID).
			Scan(&t.Name, &t.MinPoints, &t.MaxPoints, &t.DiscountPercent, &t.PointsMultiplier, &t.Color)
		if err == nil {
			tier = gin.H{
				"name":              t.Name,
				"min_points":        t.MinPoints,
				"max_points":        t.MaxPoints,
				"discount_percent":  t.DiscountPercent,
				"points_multiplier": t.PointsMultiplier,
				"color":             t.Color,
			}
		}
	}

	var maskedEmail string
	if m.CustomerEmail != nil {
		maskedEmail = utils.MaskEmail(*m.CustomerEmail)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":                     m.ID,
			"member_number":          m.MemberNumber,
			"card_barcode":           m.CardBarcode,
			"name":                   m.CustomerName,
			"email":                  maskedEmail,
			"current_points":         m.CurrentPoints,
			"lifetime_points":        m.LifetimePoints,
			"tier":                   tier,
			"expiry_date":            m.ExpiryDate,
			"reactivation_remaining": m.ReactivationRemaining,
		},
	})
}

// Member's own points history.
func GetMemberPointsHistory(c *gin.Context) {
	memberID := currentMemberID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	entries, err := loadLedger(memberID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"transactions": entries}})
}

// Rewards catalog for the member app; reuses the staff listing.
func ListMemberRewards(c *gin.Context) {
	ListRedeemableProducts(c)
}

// Self-service reward redemption from the app.
func MemberRedeemReward(c *gin.Context) {
	memberID := currentMemberID(c)

	var req struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int64  `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Product id is required"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid product id"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := services.RedeemProduct(DB, memberID, productID, req.Quantity, nil)
	if err != nil {
		status, msg := redemptionError(err)
		c.JSON(status, gin.H{"success": false, "message": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reward redeemed", "data": result})
}
