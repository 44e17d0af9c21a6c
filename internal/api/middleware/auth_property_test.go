package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_JWTAuthenticationValidity tests that requests with a valid
// token are accepted and requests with a missing, malformed, or tampered
// token are rejected with 401.
func TestProperty_JWTAuthenticationValidity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	jwtManager := NewJWTManager("test-secret", time.Hour)

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(JWTMiddleware(jwtManager))
		router.GET("/test", func(c *gin.Context) {
			userID, _ := GetUserIDFromContext(c)
			c.JSON(http.StatusOK, gin.H{"user_id": userID})
		})
		return router
	}

	// Property: requests with a valid token are accepted
	properties.Property("valid_token_accepted", prop.ForAll(
		func(userID uint, username string) bool {
			token, _, err := jwtManager.GenerateToken(userID, username)
			if err != nil {
				return false
			}

			req, _ := http.NewRequest("GET", "/test", nil)
			req.Header.Set(AuthorizationHeader, BearerPrefix+token)

			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			return w.Code == http.StatusOK
		},
		gen.UIntRange(1, 10000),
		gen.AlphaString(),
	))

	// Property: requests without a token are rejected
	properties.Property("missing_token_rejected", prop.ForAll(
		func(path string) bool {
			req, _ := http.NewRequest("GET", "/test", nil)

			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
	))

	// Property: garbage tokens are rejected
	properties.Property("malformed_token_rejected", prop.ForAll(
		func(garbage string) bool {
			req, _ := http.NewRequest("GET", "/test", nil)
			req.Header.Set(AuthorizationHeader, BearerPrefix+garbage)

			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
	))

	// Property: tokens signed with another secret are rejected
	properties.Property("token_from_other_secret_rejected", prop.ForAll(
		func(userID uint) bool {
			other := NewJWTManager("other-secret", time.Hour)
			token, _, err := other.GenerateToken(userID, "intruder")
			if err != nil {
				return false
			}

			req, _ := http.NewRequest("GET", "/test", nil)
			req.Header.Set(AuthorizationHeader, BearerPrefix+token)

			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.UIntRange(1, 10000),
	))

	properties.TestingRun(t)
}

// TestProperty_JWTClaimsRoundtrip tests that the claims carried in a token
// survive generation and validation unchanged.
func TestProperty_JWTClaimsRoundtrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	jwtManager := NewJWTManager("test-secret", time.Hour)

	properties.Property("claims_roundtrip", prop.ForAll(
		func(userID uint, username string) bool {
			token, expiresAt, err := jwtManager.GenerateToken(userID, username)
			if err != nil {
				return false
			}
			if expiresAt <= time.Now().Unix() {
				return false
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				return false
			}
			return claims.UserID == userID && claims.Username == username
		},
		gen.UIntRange(1, 100000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestJWTManager_ExpiredTokenRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)

	expired := NewJWTManager("test-secret", -time.Hour)
	token, _, err := expired.GenerateToken(1, "alice")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	validator := NewJWTManager("test-secret", time.Hour)
	if _, err := validator.ValidateToken(token); err != ErrTokenExpired {
		t.Fatalf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTMiddleware_RequiresBearerPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtManager := NewJWTManager("test-secret", time.Hour)
	token, _, err := jwtManager.GenerateToken(1, "alice")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	router := gin.New()
	router.Use(JWTMiddleware(jwtManager))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set(AuthorizationHeader, token) // no Bearer prefix

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}
