package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"vcspos-server/config"
	"vcspos-server/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const staffTokenLifetime = 12 * time.Hour

func generateStaffToken(userID uuid.UUID, username, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID.String(),
		"username": username,
		"role":     role,
		"exp":      time.Now().Add(staffTokenLifetime).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// Staff login with username and password
func Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
		return
	}

	var user models.User
	err := DB.QueryRow(`
		SELECT id, username, full_name, password_hash, role, is_active
		FROM users WHERE username = $1`, req.Username).
		Scan(&user.ID, &user.Username, &user.FullName, &user.PasswordHash, &user.Role, &user.IsActive)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Account is deactivated"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password"})
		return
	}

	token, err := generateStaffToken(user.ID, user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token": token,
			"user": gin.H{
				"id":        user.ID,
				"username":  user.Username,
				"full_name": user.FullName,
				"role":      user.Role,
			},
		},
	})
}

// Create a staff account. Admins cannot mint other admins.
func RegisterUser(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3"`
		Password string `json:"password" binding:"required,min=8"`
		FullName string `json:"full_name"`
		Role     string `json:"role" binding:"required,oneof=cashier supervisor admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid registration data"})
		return
	}

	callerRole := c.GetString("role")
	if req.Role == "admin" && callerRole != "superadmin" {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Only superadmin can create admin accounts"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to hash password"})
		return
	}

	var fullName *string
	if req.FullName != "" {
		fullName = &req.FullName
	}
	var id uuid.UUID
	err = DB.QueryRow(`
		INSERT INTO users (username, full_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING
		RETURNING id`,
		req.Username, fullName, string(hash), req.Role).Scan(&id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Username already taken"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "user.create", "user", id.String(), map[string]interface{}{
		"username": req.Username,
		"role":     req.Role,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"id":       id,
			"username": req.Username,
			"role":     req.Role,
		},
	})
}
