/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package newsletter

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

// Response messages.
const (
	MsgSubscribed         = "Successfully subscribed to newsletter! You'll receive a welcome email soon."
	MsgTooManyAttempts    = "Too many subscription attempts. Please try again in a minute."
	MsgEmailRequired      = "Email is required"
	MsgInvalidEmail       = "Please enter a valid email address"
	MsgAlreadySubscribed  = "This email is already subscribed to our newsletter"
	MsgLookupFailed       = "Error checking subscription status"
	MsgSubscriptionFailed = "Error subscribing to newsletter"
)

// ActionSubscribe names newsletter signups for attempt limiting.
const ActionSubscribe = "newsletter"

type subscribeRequest struct {
	Email string `json:"email"`
}

// SubscribeResponse is returned on successful signup.
type SubscribeResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// Handler serves newsletter endpoints.
type Handler struct {
	service   *Service
	errDomain string
}

// NewHandler creates a new Handler.
func NewHandler(service *Service, errDomain string) *Handler {
	return &Handler{service: service, errDomain: errDomain}
}

// Mount registers POST /newsletter guarded by the attempts checker.
func (h *Handler) Mount(r chi.Router, checker middleware.AttemptChecker, limit int) {
	r.With(middleware.AttemptLimit(checker, ActionSubscribe, limit, h.errDomain,
		middleware.AttemptLimitOpts{Message: MsgTooManyAttempts})).Post("/newsletter", h.Subscribe)
}

// Subscribe handles a signup.
func (h *Handler) Subscribe(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())

	var req subscribeRequest
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, h.errDomain, err, logger)
		return
	}

	subscriber, err := h.service.Subscribe(r.Context(), req.Email)
	if err != nil {
		h.respondSubscribeError(rw, err, logger)
		return
	}

	logger.Info("newsletter subscription completed", log.String("email", subscriber.Email))
	restapi.RespondJSON(rw, SubscribeResponse{Message: MsgSubscribed, Email: subscriber.Email}, logger)
}

func (h *Handler) respondSubscribeError(rw http.ResponseWriter, err error, logger log.FieldLogger) {
	badRequest := func(msg string) {
		restapi.RespondError(rw, http.StatusBadRequest, restapi.NewError(h.errDomain, restapi.ErrCodeBadRequest, msg), logger)
	}
	var opErr *OpError
	switch {
	case errors.Is(err, ErrEmailRequired):
		badRequest(MsgEmailRequired)
	case errors.Is(err, ErrInvalidEmail):
		badRequest(MsgInvalidEmail)
	case errors.Is(err, ErrAlreadySubscribed):
		restapi.RespondError(rw, http.StatusConflict,
			restapi.NewError(h.errDomain, restapi.ErrCodeConflict, MsgAlreadySubscribed), logger)
	case errors.As(err, &opErr):
		logger.Error("newsletter subscription failed", log.String("op", opErr.Op), log.Error(opErr.Err))
		msg := MsgSubscriptionFailed
		if opErr.Op == OpLookup {
			msg = MsgLookupFailed
		}
		restapi.RespondError(rw, http.StatusInternalServerError,
			restapi.NewError(h.errDomain, restapi.ErrCodeInternal, msg), logger)
	default:
		logger.Error("newsletter subscription failed", log.Error(err))
		restapi.RespondInternalError(rw, h.errDomain, logger)
	}
}
