// kimichat/controllers/auth.go
package controllers

import (
	"errors"
	"time"

	"kimichat/kimichat/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const visitorTokenTTL = 24 * time.Hour

var ErrAuthDisabled = errors.New("visitor tokens are disabled")

type AuthController struct {
	cfg config.Config
	now func() time.Time
}

func NewAuthController(cfg config.Config) *AuthController {
	return &AuthController{cfg: cfg, now: time.Now}
}

// IssueVisitorToken signs a token for a fresh anonymous visitor.
func (c *AuthController) IssueVisitorToken() (token string, visitorID string, expires time.Time, err error) {
	if c.cfg.JWTSecret == "" {
		return "", "", time.Time{}, ErrAuthDisabled
	}
	visitorID = uuid.New().String()
	expires = c.now().Add(visitorTokenTTL)
	claims := jwt.MapClaims{
		"visitor_id": visitorID,
		"exp":        expires.Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.JWTSecret))
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, visitorID, expires, nil
}
