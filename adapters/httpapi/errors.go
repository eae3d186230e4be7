package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clustermaster/clustermaster/domain/model"
)

// statusOf maps domain sentinels to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrClusterNotFound),
		errors.Is(err, model.ErrProviderAmbiguous),
		errors.Is(err, model.ErrDeploymentNotFound),
		errors.Is(err, model.ErrReleaseNotFound),
		errors.Is(err, model.ErrActivityNotFound),
		errors.Is(err, model.ErrBackupNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrClusterInvalid),
		errors.Is(err, model.ErrProviderInvalid),
		errors.Is(err, model.ErrDeploymentInvalid),
		errors.Is(err, model.ErrBackupInvalid):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrResourceExhausted),
		errors.Is(err, model.ErrToolUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
