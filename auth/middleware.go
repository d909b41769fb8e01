package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skekre98/chatlog/web"
)

const claimsKey = "auth.claims"

// Bearer rejects requests without a valid "Authorization: Bearer" token and
// stores the verified claims for the handlers.
func Bearer(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			Abort(c, ErrInvalidToken)
			return
		}
		claims, err := svc.Verify(token)
		if err != nil {
			Abort(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Bearer.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// Abort writes err as an error response and stops the chain. Errors that
// are not an *Error are reported as invalid tokens.
func Abort(c *gin.Context, err error) {
	var authErr *Error
	if !errors.As(err, &authErr) {
		authErr = ErrInvalidToken
	}
	web.AbortWithError(c, authErr.Status, authErr.Type, authErr.Message)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
