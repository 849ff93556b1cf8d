// kimichat/routes/auth.go
package routes

import (
	"errors"
	"net/http"

	"kimichat/kimichat/controllers"
	"kimichat/kimichat/utils/types"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(ctrl *controllers.AuthController) chi.Router {
	r := chi.NewRouter()
	r.Post("/visitor", func(w http.ResponseWriter, r *http.Request) {
		token, visitorID, expires, err := ctrl.IssueVisitorToken()
		if errors.Is(err, controllers.ErrAuthDisabled) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, types.VisitorTokenResponse{
			Token:     token,
			VisitorID: visitorID,
			ExpiresAt: expires.Unix(),
		})
	})
	return r
}
