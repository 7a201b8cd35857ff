package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tdh/internal/middleware"
	"tdh/internal/models"
	"tdh/internal/moderation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "tdh_session"

	tokenIssuer   = "tdh-api"
	tokenAudience = "tdh-client"

	localsUser   = "user"
	localsClaims = "claims"
)

var errNoSession = errors.New("no session token")

// generateToken creates a signed session token for the account.
func (s *Server) generateToken(user *models.User) (string, time.Time, error) {
	if s.config.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	expires := now.Add(s.config.SessionTTL())
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      expires.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	return signed, expires, err
}

// parseToken validates signature, issuer, audience and expiry.
func (s *Server) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// tokenFromRequest reads a Bearer header first, then the session cookie.
func tokenFromRequest(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(SessionCookie)
}

func (s *Server) isRevoked(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, "blacklist:"+jti).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "session revocation check failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}

// resolveSession loads the account behind the request's token.
func (s *Server) resolveSession(c *fiber.Ctx) (*models.User, jwt.MapClaims, error) {
	tokenString := tokenFromRequest(c)
	if tokenString == "" {
		return nil, nil, errNoSession
	}

	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	jti, _ := claims["jti"].(string)
	if s.isRevoked(c.UserContext(), jti) {
		return nil, nil, errors.New("token has been revoked")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, nil, err
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid subject: %w", err)
	}

	user, err := s.userRepo.GetByID(c.UserContext(), uint(userID))
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s *Server) bindIdentity(c *fiber.Ctx, user *models.User, claims jwt.MapClaims) {
	c.Locals(middleware.LocalsUserID, user.ID)
	c.Locals(middleware.LocalsAccountStatus, string(user.Status))
	c.Locals(middleware.LocalsIsAdmin, user.IsAdmin)
	c.Locals(localsUser, user)
	c.Locals(localsClaims, claims)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID)
	c.SetUserContext(ctx)
}

// AuthRequired returns the authentication middleware. Approval is checked by
// each operation, so pending accounts pass here.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, claims, err := s.resolveSession(c)
		if err != nil {
			if !errors.Is(err, errNoSession) {
				middleware.Logger.DebugContext(c.UserContext(), "session rejected", slog.String("error", err.Error()))
				s.clearSessionCookie(c)
			}
			return models.RespondWithAppError(c, models.NewUnauthorizedError("Authentication required"))
		}
		s.bindIdentity(c, user, claims)
		return c.Next()
	}
}

// RejectIfSignedIn stops session holders from registering or signing in again.
func (s *Server) RejectIfSignedIn() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, _, err := s.resolveSession(c); err == nil {
			return models.RespondWithAppError(c, models.NewAlreadySignedInError())
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the account is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := moderation.RequireAdmin(currentUser(c)).Err(); err != nil {
			return models.RespondWithAppError(c, err)
		}
		return c.Next()
	}
}

// issueSession signs a token and sets it as an HTTP-only cookie.
func (s *Server) issueSession(c *fiber.Ctx, user *models.User) (string, error) {
	token, expires, err := s.generateToken(user)
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return token, nil
}

// revokeSession blacklists the current token until it would have expired.
func (s *Server) revokeSession(c *fiber.Ctx) {
	defer s.clearSessionCookie(c)

	claims, ok := c.Locals(localsClaims).(jwt.MapClaims)
	if !ok || s.redis == nil {
		return
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return
	}
	ttl := time.Minute
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if remaining := time.Until(exp.Time); remaining > 0 {
			ttl = remaining
		}
	}
	if err := s.redis.Set(c.UserContext(), "blacklist:"+jti, "1", ttl).Err(); err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "failed to revoke session", slog.String("error", err.Error()))
	}
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
