package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"relay-service/internal/credentials"
	"relay-service/internal/models"
)

// ParticipantContextKey is where the resolved participant lives in the gin
// context.
const ParticipantContextKey = "participant"

// Auth validates the Authorization header against the static credential map
// and stores the resolved participant in the context. Requests never reach a
// handler without a known identity.
func Auth(creds *credentials.Map) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		participant, err := creds.Lookup(parts[1])
		if err != nil {
			status := http.StatusForbidden
			if errors.Is(err, credentials.ErrMissingCredential) {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}

		c.Set(ParticipantContextKey, participant)
		c.Next()
	}
}

// ParticipantFromContext extracts the authenticated participant.
func ParticipantFromContext(c *gin.Context) (models.Participant, bool) {
	val, ok := c.Get(ParticipantContextKey)
	if !ok {
		return "", false
	}
	p, ok := val.(models.Participant)
	if !ok || !p.Valid() {
		return "", false
	}
	return p, true
}
