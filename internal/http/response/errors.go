package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/loader"
	"github.com/yungbote/lumen-backend/internal/platform/apierr"
	"github.com/yungbote/lumen-backend/internal/services"
)

// FromService maps a service-layer error onto a status and stable code.
// Anything unrecognised is a 500.
func FromService(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	var (
		genErr     *services.GenerationFailedError
		persistErr *services.PersistFailedError
		interErr   *services.InteractionFailedError
	)
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		return apierr.New(http.StatusPaymentRequired, "insufficient_balance", err)
	case errors.Is(err, services.ErrGenerationInFlight):
		return apierr.New(http.StatusConflict, "generation_in_flight", err)
	case errors.Is(err, services.ErrAlreadyPublished):
		return apierr.New(http.StatusConflict, "already_published", err)
	case errors.Is(err, services.ErrInvalidTransition):
		return apierr.New(http.StatusConflict, "invalid_transition", err)
	case errors.Is(err, services.ErrNoSnapshot):
		return apierr.New(http.StatusUnprocessableEntity, "no_snapshot", err)
	case errors.Is(err, services.ErrInvalidKind):
		return apierr.New(http.StatusBadRequest, "invalid_kind", err)
	case errors.Is(err, services.ErrInvalidInput):
		return apierr.New(http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, services.ErrForbidden):
		return apierr.New(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, services.ErrNotFound), errors.Is(err, repos.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, loader.ErrLoadTimeout):
		return apierr.New(http.StatusGatewayTimeout, "load_timeout", err)
	case errors.As(err, &genErr):
		return apierr.New(http.StatusBadGateway, "generation_failed", err)
	case errors.As(err, &persistErr):
		return apierr.New(http.StatusServiceUnavailable, "persist_failed", err)
	case errors.As(err, &interErr):
		return apierr.New(http.StatusServiceUnavailable, "interaction_failed", err)
	default:
		return apierr.From(err)
	}
}

func RespondServiceError(c *gin.Context, err error) {
	ae := FromService(err)
	RespondError(c, ae.Status, ae.Code, ae)
}
