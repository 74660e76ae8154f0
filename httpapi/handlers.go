package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/statelessauth"
	"github.com/MrEthical07/statelessauth/httpapi/response"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type handlers struct {
	svc     Service
	logger  *zap.Logger
	maxBody int64
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type registerBody struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// Login bodies are not validated here so that every bad credential gets
// the same 401 from the Engine.
type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User         statelessauth.PrincipalView `json:"user"`
	AccessToken  string                      `json:"accessToken"`
	RefreshToken string                      `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !h.decode(w, r, &body) {
		return
	}
	if err := validate.Struct(body); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	res, err := h.svc.Register(r.Context(), w, statelessauth.RegisterRequest{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, authResponse{
		User:         res.Principal,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.svc.Login(r.Context(), w, statelessauth.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, authResponse{
		User:         res.Principal,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), w)
	response.NoContent(w)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RefreshAccessToken(r.Context(), r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, refreshResponse{AccessToken: res.AccessToken})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	sc, ok := statelessauth.SecurityContextFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}
	response.Success(w, sc.Principal)
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, response.CodeBadRequest, "request body too large", "")
		case errors.Is(err, io.EOF):
			response.BadRequest(w, "request body required")
		default:
			response.BadRequest(w, "invalid JSON body")
		}
		return false
	}
	return true
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, statelessauth.ErrInvalidInput):
		response.BadRequest(w, err.Error())
	case errors.Is(err, statelessauth.ErrResourceAlreadyExists):
		response.Conflict(w, "email already registered")
	case errors.Is(err, statelessauth.ErrAuthentication):
		response.Unauthorized(w, statelessauth.ErrAuthentication.Error())
	case errors.Is(err, statelessauth.ErrUnauthorized):
		response.Unauthorized(w, "invalid or expired refresh token")
	case errors.Is(err, statelessauth.ErrEngineNotReady):
		response.Error(w, http.StatusServiceUnavailable, response.CodeNotReady, "service unavailable", "")
	default:
		h.logger.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		response.InternalError(w)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
