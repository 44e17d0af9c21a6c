package handlers

import (
	"net/http"
	"testing"

	"github.com/inbox-agent/core/internal/services"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_PasswordChangeValidity tests that after a password change the
// old password no longer verifies and the new one does.
func TestProperty_PasswordChangeValidity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	// Generator for valid passwords (6+ chars)
	validPasswordGen := gen.SliceOfN(10, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	properties.Property("old_password_invalid_after_change", prop.ForAll(
		func(oldPassword, newPassword string) bool {
			if oldPassword == newPassword {
				return true
			}
			db, cleanup := setupHandlerDB(t)
			defer cleanup()

			userService := services.NewUserService(db)
			user, err := userService.CreateUser("testuser", oldPassword, "Test User")
			if err != nil {
				return false
			}

			handler := NewUserHandler(userService, services.NewLogService(db))
			router := authedRouter(user.ID)
			router.PUT("/api/user/password", handler.ChangePassword)

			w := doJSON(router, "PUT", "/api/user/password", map[string]interface{}{
				"old_password": oldPassword,
				"new_password": newPassword,
			})
			if w.Code != http.StatusOK {
				return false
			}

			if _, err := userService.VerifyPassword("testuser", oldPassword); err != services.ErrInvalidCredentials {
				return false
			}
			_, err = userService.VerifyPassword("testuser", newPassword)
			return err == nil
		},
		validPasswordGen,
		validPasswordGen,
	))

	properties.Property("wrong_old_password_is_rejected", prop.ForAll(
		func(password string) bool {
			db, cleanup := setupHandlerDB(t)
			defer cleanup()

			userService := services.NewUserService(db)
			user, err := userService.CreateUser("testuser", password, "Test User")
			if err != nil {
				return false
			}

			handler := NewUserHandler(userService, services.NewLogService(db))
			router := authedRouter(user.ID)
			router.PUT("/api/user/password", handler.ChangePassword)

			w := doJSON(router, "PUT", "/api/user/password", map[string]interface{}{
				"old_password": password + "x",
				"new_password": "replacement",
			})
			if w.Code != http.StatusUnauthorized {
				return false
			}

			// The stored password is untouched
			_, err = userService.VerifyPassword("testuser", password)
			return err == nil
		},
		validPasswordGen,
	))

	properties.TestingRun(t)
}

// TestProperty_ProfileUpdatePersistence tests that a profile update reads
// back with the new nickname.
func TestProperty_ProfileUpdatePersistence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("nickname_roundtrips_through_api", prop.ForAll(
		func(nickname string) bool {
			db, cleanup := setupHandlerDB(t)
			defer cleanup()

			userService := services.NewUserService(db)
			user, err := userService.CreateUser("testuser", "longenough", "Original")
			if err != nil {
				return false
			}

			handler := NewUserHandler(userService, services.NewLogService(db))
			router := authedRouter(user.ID)
			router.GET("/api/user/profile", handler.GetProfile)
			router.PUT("/api/user/profile", handler.UpdateProfile)

			w := doJSON(router, "PUT", "/api/user/profile", map[string]interface{}{
				"nickname": nickname,
			})
			if w.Code != http.StatusOK {
				return false
			}

			w = doJSON(router, "GET", "/api/user/profile", nil)
			if w.Code != http.StatusOK {
				return false
			}
			resp := decodeResponse(t, w)
			data, ok := resp["data"].(map[string]interface{})
			if !ok {
				return false
			}
			return data["nickname"] == nickname && data["username"] == "testuser"
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestUserHandler_ChangePasswordRejectsShortPassword(t *testing.T) {
	db, cleanup := setupHandlerDB(t)
	defer cleanup()

	userService := services.NewUserService(db)
	user, err := userService.CreateUser("testuser", "longenough", "Test User")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	handler := NewUserHandler(userService, services.NewLogService(db))
	router := authedRouter(user.ID)
	router.PUT("/api/user/password", handler.ChangePassword)

	w := doJSON(router, "PUT", "/api/user/password", map[string]interface{}{
		"old_password": "longenough",
		"new_password": "tiny",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}
