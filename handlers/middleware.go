package handlers

import (
	"net/http"
	"strings"

	"vcspos-server/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MemberRole is the claim role carried by member app tokens. Staff
// tokens carry one of the users table roles instead.
const MemberRole = "loyalty_member"

func parseToken(c *gin.Context) (jwt.MapClaims, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	return claims, ok
}

// AuthRequired rejects requests without a valid staff token and stores
// the caller's identity on the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}
		role, _ := claims["role"].(string)
		if role == MemberRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Staff access required"})
			return
		}
		userID, err := uuid.Parse(stringClaim(claims, "user_id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
			return
		}
		c.Set("user_id", userID)
		c.Set("username", stringClaim(claims, "username"))
		c.Set("role", role)
		c.Next()
	}
}

// RequireRoles gates a route to the listed staff roles. superadmin
// passes every gate.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "superadmin" {
			c.Next()
			return
		}
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// MemberAuthRequired rejects requests without a valid member app token.
func MemberAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}
		role, _ := claims["role"].(string)
		if role != MemberRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Member access required"})
			return
		}
		memberID, err := uuid.Parse(stringClaim(claims, "member_id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
			return
		}
		c.Set("member_id", memberID)
		c.Next()
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

func currentUserID(c *gin.Context) uuid.UUID {
	v, _ := c.Get("user_id")
	id, _ := v.(uuid.UUID)
	return id
}

func currentMemberID(c *gin.Context) uuid.UUID {
	v, _ := c.Get("member_id")
	id, _ := v.(uuid.UUID)
	return id
}
