package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/observ"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100

	// maxPageOffset keeps offsets inside bigint and away from deep scans.
	maxPageOffset = 100_000
)

// respondError writes {"error", "code"} with the status for err's code.
// Anything that is not an *apperr.Error is logged and answered with a
// generic 500 so driver messages never reach the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := apperr.From(err)
	_ = c.Error(err)

	if appErr.Code == apperr.CodeInternal {
		logger.Error(appErr.Message,
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(observ.ContextKeyRequestID)),
		)
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus(), gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
}

// bindError turns a gin binding failure into a 400.
func bindError(err error) error {
	return apperr.Validation(err.Error())
}

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}

// queryID parses an optional positive int64 query parameter; absent is 0.
func queryID(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid '" + name + "' parameter")
	}
	return id, nil
}

// pageParams reads ?limit=&offset=. limit defaults to 50 and is capped at
// 100; offset must be between 0 and maxPageOffset.
func pageParams(c *gin.Context) (repository.Page, error) {
	page := repository.Page{Limit: defaultPageLimit}

	if l := c.Query("limit"); l != "" {
		limit, err := strconv.ParseUint(l, 10, 64)
		if err != nil || limit < 1 {
			return page, apperr.Validation("invalid 'limit' parameter")
		}
		page.Limit = min(limit, maxPageLimit)
	}
	if o := c.Query("offset"); o != "" {
		offset, err := strconv.ParseInt(o, 10, 64)
		if err != nil || offset < 0 || offset > maxPageOffset {
			return page, apperr.Validation("invalid 'offset' parameter")
		}
		page.Offset = uint64(offset)
	}
	return page, nil
}

// storeError maps repository sentinels onto client errors. notFound is
// used for ErrNotFound, and for ErrInvalidReference too unless invalidRef
// is given. Anything else becomes an internal error described by op.
func storeError(err error, op, notFound, invalidRef string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repository.ErrInvalidReference) && invalidRef != "":
		return apperr.Validation(invalidRef)
	case errors.Is(err, repository.ErrInvalidReference):
		return apperr.NotFound(notFound)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict("already exists")
	default:
		return apperr.Internal(op, err)
	}
}
