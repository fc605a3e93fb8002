package handlers

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"launchpad-backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthHandler issues admin JWTs after password + TOTP verification.
type AdminAuthHandler struct {
	jwtSecret      []byte
	passwordBcrypt string
	totpSecret     string
	tokenTTL       time.Duration
}

// AdminLoginRequest is the admin login payload.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// AdminLoginResponse is the admin login result.
type AdminLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// AdminJWTClaims are the admin token claims.
type AdminJWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewAdminAuthHandler creates the handler from the admin config section.
// Missing secrets disable login rather than crash the service.
func NewAdminAuthHandler(adminCfg config.AdminConfig) *AdminAuthHandler {
	if adminCfg.TOTPSecret == "" || adminCfg.PasswordBcrypt == "" {
		logrus.Warn("⚠️ admin TOTP secret or password hash not configured, admin login is disabled")
	}

	jwtSecret := adminCfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "launchpad-admin-jwt-secret-default-change-me"
		logrus.Warn("⚠️ using default ADMIN_JWT_SECRET, set the environment variable in production")
	}

	ttl := time.Duration(adminCfg.TokenTTLHours) * time.Hour
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &AdminAuthHandler{
		jwtSecret:      []byte(jwtSecret),
		passwordBcrypt: adminCfg.PasswordBcrypt,
		totpSecret:     adminCfg.TOTPSecret,
		tokenTTL:       ttl,
	}
}

// AdminLoginHandler handles POST /api/v1/admin/login.
func (h *AdminAuthHandler) AdminLoginHandler(c *gin.Context) {
	if h.totpSecret == "" || h.passwordBcrypt == "" {
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{
			Success: false,
			Message: "Server misconfiguration: admin credentials not set",
		})
		return
	}

	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AdminLoginResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	expectedUsername := os.Getenv("ADMIN_USERNAME")
	if expectedUsername == "" {
		expectedUsername = "admin"
	}

	// Same generic message for every credential failure.
	if req.Username != expectedUsername {
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordBcrypt), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}
	if !totp.Validate(req.TOTPCode, h.totpSecret) {
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	token, err := h.generateAdminJWTToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, AdminLoginResponse{
		Success: true,
		Token:   token,
		Message: "Login successful",
	})
}

// GenerateTOTPSecretHandler bootstraps a TOTP secret. Refuses once one is
// configured.
func (h *AdminAuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if h.totpSecret != "" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TOTP secret already configured",
		})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Launchpad Admin",
		AccountName: "admin@launchpad",
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate TOTP secret",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret to ADMIN_TOTP_SECRET. Use it to generate TOTP codes.",
	})
}

func (h *AdminAuthHandler) generateAdminJWTToken(username string) (string, error) {
	claims := AdminJWTClaims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "launchpad-backend-admin",
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateAdminJWTToken verifies an admin token and returns its claims.
func ValidateAdminJWTToken(tokenString string) (*AdminJWTClaims, error) {
	jwtSecretStr := os.Getenv("ADMIN_JWT_SECRET")
	if jwtSecretStr == "" && config.AppConfig != nil {
		jwtSecretStr = config.AppConfig.Admin.JWTSecret
	}
	if jwtSecretStr == "" {
		jwtSecretStr = "launchpad-admin-jwt-secret-default-change-me"
	}
	jwtSecret := []byte(jwtSecretStr)

	token, err := jwt.ParseWithClaims(tokenString, &AdminJWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*AdminJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
