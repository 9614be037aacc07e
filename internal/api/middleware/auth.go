package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/sshrecord/internal/auth"
)

// IssuerTokenHeader carries the front service token
const IssuerTokenHeader = "X-Issuer-Token"

// IssuerAuth middleware checks the token of the front service requesting certificates.
// The token may also be sent as a bearer Authorization header.
func IssuerAuth(issuerToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(IssuerTokenHeader)
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Issuer token required",
			})
			return
		}

		if !auth.VerifyToken(token, issuerToken) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Invalid issuer token",
			})
			return
		}

		c.Next()
	}
}
