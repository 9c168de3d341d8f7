package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vinin2308/foodflow-cardapio/accesscode"
	"github.com/vinin2308/foodflow-cardapio/store"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

// respondTabError maps the domain error taxonomy onto HTTP statuses. Every
// error keeps enough detail to render a user-facing message.
func respondTabError(c *gin.Context, err error) {
	var validation *store.ValidationError
	var transition *store.InvalidTransitionError

	switch {
	case errors.As(err, &validation):
		utils.RespondJSON(c, http.StatusBadRequest, validation.Error(),
			gin.H{"violations": validation.Violations})
	case errors.Is(err, store.ErrInvalidQuantity):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.As(err, &transition):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidHierarchy),
		errors.Is(err, store.ErrAccessCodeConflict),
		errors.Is(err, store.ErrTabClosed):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, accesscode.ErrCodeSpaceExhausted):
		utils.RespondError(c, http.StatusServiceUnavailable, err)
	default:
		utils.RespondError(c, http.StatusInternalServerError, err)
	}
}
