package handlers

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kithbot/kith/internal/config"
)

// secretMatches checks the /admin secret. A configured bcrypt hash wins over
// the plain password; with neither configured the command is disabled.
func secretMatches(cfg config.AdminConfig, secret string) bool {
	if hash := strings.TrimSpace(cfg.PasswordHash); hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
	}
	if cfg.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.Password), []byte(secret)) == 1
}
