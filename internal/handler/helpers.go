package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
)

// maxLongPoll caps the ?wait= duration accepted by long-poll endpoints.
const maxLongPoll = 60 * time.Second

// waitParam parses ?wait=10s. Zero means no waiting.
func waitParam(c *gin.Context) (time.Duration, error) {
	raw := c.Query("wait")
	if raw == "" {
		return 0, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil || wait < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "wait must be a non-negative duration such as 10s")
	}
	if wait > maxLongPoll {
		wait = maxLongPoll
	}
	return wait, nil
}

func badRequest(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
