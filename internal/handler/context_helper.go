package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/middleware"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}

// ifMatchVersion reads the draft version from an If-Match header. Quoted, weak and bare forms
// are accepted; an absent header or "*" disables the version check.
func ifMatchVersion(c *gin.Context) (*int, error) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.Atoi(raw)
	if err != nil || version < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "If-Match must carry a draft version")
	}
	return &version, nil
}

func setETag(c *gin.Context, version int) {
	c.Header("ETag", `"`+strconv.Itoa(version)+`"`)
}

func cacheMeta(c *gin.Context, hit bool) map[string]interface{} {
	return middleware.SnapshotMeta(c, hit)
}
