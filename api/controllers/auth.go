package controllers

import (
	"net/http"
	"time"

	"github.com/tiendly/tiendly-backend/api/responses"
	"github.com/tiendly/tiendly-backend/api/validators"
	"github.com/tiendly/tiendly-backend/internal/users"
	pkgAuth "github.com/tiendly/tiendly-backend/pkg/auth"
	"github.com/tiendly/tiendly-backend/pkg/config"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  *users.UserDTO `json:"user"`
}

// Login exchanges credentials for a signed access token.
func Login(svc users.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := pkgAuth.MintAccessToken(jwtCfg, time.Now(), pkgAuth.AccessTokenPayload{
			UserID: user.ID,
			Email:  user.Email,
			Admin:  user.IsAdmin,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting token"))
			return
		}

		responses.WriteSuccess(w, loginResponse{Token: token, User: users.FromModel(user)})
	}
}
