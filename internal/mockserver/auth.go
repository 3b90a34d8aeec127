package mockserver

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/parallax-connect/internal/pkg/response"
)

// PasswordHeader carries the shared secret
const PasswordHeader = "x-password"

// requirePassword rejects requests whose x-password does not match. An
// empty configured password leaves the server open.
func (s *Server) requirePassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := s.config.Password
		if want == "" {
			c.Next()
			return
		}
		got := c.GetHeader(PasswordHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			response.Unauthorized(c, "Invalid password")
			return
		}
		c.Next()
	}
}
