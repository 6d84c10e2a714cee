package auth

import (
	"errors"
	"strings"

	"farm-market-backend/internal/httpx"
	"farm-market-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

type UserResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	CreatedAt string          `json:"created_at,omitempty"`
}

func toUserResponse(u *models.User) UserResponse {
	res := UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
	if !u.CreatedAt.IsZero() {
		res.CreatedAt = u.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return res
}

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// POST /api/auth/register
func RegisterHandler(db *gorm.DB, issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Username = strings.TrimSpace(body.Username)
		body.Email = normalizeEmail(body.Email)
		if err := httpx.Validate(&body); err != nil {
			return err
		}

		tx := db.WithContext(c.UserContext())

		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", body.Username).Count(&count).Error; err != nil {
			return httpx.Internal(err, "Database error occurred")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Username already exists")
		}
		if err := tx.Model(&models.User{}).Where("email = ?", body.Email).Count(&count).Error; err != nil {
			return httpx.Internal(err, "Database error occurred")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Email already exists")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return httpx.Internal(err, "Failed to hash password")
		}

		user := models.User{
			Username:     body.Username,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleUser,
		}
		if err := tx.Create(&user).Error; err != nil {
			return httpx.Internal(err, "Failed to create user")
		}

		token, err := issuer.Generate(&user)
		if err != nil {
			return httpx.Internal(err, "Failed to issue token")
		}

		return httpx.Created(c, fiber.Map{
			"message": "User registered successfully",
			"user":    toUserResponse(&user),
			"token":   token,
		})
	}
}

// POST /api/auth/login
func LoginHandler(db *gorm.DB, issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Username = strings.TrimSpace(body.Username)
		if err := httpx.Validate(&body); err != nil {
			return err
		}

		var user models.User
		err := db.WithContext(c.UserContext()).Where("username = ?", body.Username).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}
		if err != nil {
			return httpx.Internal(err, "Database error occurred")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}

		token, err := issuer.Generate(&user)
		if err != nil {
			return httpx.Internal(err, "Failed to issue token")
		}

		return httpx.OK(c, fiber.Map{
			"message": "Login successful",
			"user":    toUserResponse(&user),
			"token":   token,
		})
	}
}

func loadCurrentUser(c *fiber.Ctx, db *gorm.DB) (*models.User, error) {
	actor := CurrentActor(c)
	var user models.User
	err := db.WithContext(c.UserContext()).First(&user, actor.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		return nil, httpx.Internal(err, "Database error occurred")
	}
	return &user, nil
}

// GET /api/auth/profile
func ProfileHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := loadCurrentUser(c, db)
		if err != nil {
			return err
		}
		return httpx.OK(c, fiber.Map{"user": toUserResponse(user)})
	}
}

// PUT /api/auth/profile. Only email and password can change.
func UpdateProfileHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateProfileRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.Email != nil {
			email := normalizeEmail(*body.Email)
			body.Email = &email
		}
		if err := httpx.Validate(&body); err != nil {
			return err
		}
		if body.Email == nil && body.Password == nil {
			return fiber.NewError(fiber.StatusBadRequest, "No valid fields to update")
		}

		user, err := loadCurrentUser(c, db)
		if err != nil {
			return err
		}
		tx := db.WithContext(c.UserContext())

		if body.Email != nil && *body.Email != user.Email {
			var count int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", *body.Email, user.ID).Count(&count).Error; err != nil {
				return httpx.Internal(err, "Database error occurred")
			}
			if count > 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Email already exists")
			}
			user.Email = *body.Email
		}
		if body.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
			if err != nil {
				return httpx.Internal(err, "Failed to hash password")
			}
			user.PasswordHash = string(hash)
		}

		if err := tx.Save(user).Error; err != nil {
			return httpx.Internal(err, "Failed to update profile")
		}

		return httpx.OK(c, fiber.Map{
			"message": "Profile updated successfully",
			"user":    toUserResponse(user),
		})
	}
}

// POST /api/auth/refresh issues a new token with the user's current role.
func RefreshHandler(db *gorm.DB, issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := loadCurrentUser(c, db)
		if err != nil {
			return err
		}
		token, err := issuer.Generate(user)
		if err != nil {
			return httpx.Internal(err, "Failed to issue token")
		}
		return httpx.OK(c, fiber.Map{
			"message": "Token refreshed successfully",
			"token":   token,
		})
	}
}

// POST /api/auth/logout. Tokens are stateless; the client drops its copy.
func LogoutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return httpx.OK(c, fiber.Map{
			"message": "Logout successful. Please remove the token from client storage.",
		})
	}
}

// GET /api/auth/verify
func VerifyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := CurrentActor(c)
		return httpx.OK(c, fiber.Map{
			"message": "Token is valid",
			"user": fiber.Map{
				"user_id":  actor.UserID,
				"username": actor.Username,
				"role":     actor.Role,
			},
		})
	}
}
