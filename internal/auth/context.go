package auth

import "github.com/gin-gonic/gin"

// Tenant and user resolution happen upstream; the gateway forwards the
// resolved identities in these headers.
const (
	HeaderMerchantID = "X-Merchant-ID"
	HeaderUserID     = "X-User-ID"
)

func MerchantID(c *gin.Context) string {
	return c.GetHeader(HeaderMerchantID)
}

func UserID(c *gin.Context) string {
	return c.GetHeader(HeaderUserID)
}
