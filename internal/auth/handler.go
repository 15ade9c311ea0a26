/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/internal/mailer"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

// ActionSendOTP names one-time code requests for attempt limiting.
const ActionSendOTP = "auth_otp"

// Response messages.
const (
	MsgCodeSent          = "Verification code sent. Check your email."
	MsgTooManyAttempts   = "Too many sign-in attempts. Please try again in a minute."
	MsgEmailRequired     = "Email is required"
	MsgInvalidEmail      = "Please enter a valid email address"
	MsgCodeRequired      = "Verification code is required"
	MsgInvalidCode       = "Invalid or expired verification code"
	MsgUnsupportedChain  = "Unsupported wallet chain"
	MsgSignatureRequired = "Wallet signature is required"
	MsgTermsNotAccepted  = "Sign-in message must include the terms of service statement"
	MsgInvalidWallet     = "Wallet signature could not be verified"
	MsgAuthRequired      = "Authentication required"
	MsgSendCodeFailed    = "Error sending verification code"
	MsgVerifyFailed      = "Error verifying code"
	MsgWeb3SignInFailed  = "Error signing in with wallet"
	MsgSignOutFailed     = "Error signing out"
)

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type web3Request struct {
	Web3Credentials
	Wallet WalletActivity `json:"wallet"`
}

// UserResponse wraps the signed-in user.
type UserResponse struct {
	User User `json:"user"`
}

// Web3Response is returned on successful wallet sign-in.
type Web3Response struct {
	User   User           `json:"user"`
	Device Device         `json:"device"`
	Risk   RiskAssessment `json:"risk"`
}

// Handler serves sign-in endpoints.
type Handler struct {
	provider       Provider
	cookies        cookieWriter
	loginPath      string
	termsStatement string
	errDomain      string
}

// NewHandler creates a new Handler.
func NewHandler(cfg *Config, provider Provider, errDomain string) *Handler {
	return &Handler{
		provider:       provider,
		cookies:        cookieWriter{cfg: cfg.Cookies},
		loginPath:      cfg.LoginPath,
		termsStatement: cfg.TermsStatement,
		errDomain:      errDomain,
	}
}

// Mount registers sign-in routes. One-time code requests are guarded by the attempts checker.
func (h *Handler) Mount(r chi.Router, checker middleware.AttemptChecker, otpLimit int) {
	r.With(middleware.AttemptLimit(checker, ActionSendOTP, otpLimit, h.errDomain,
		middleware.AttemptLimitOpts{Message: MsgTooManyAttempts})).Post("/auth/otp", h.SendOTP)
	r.Post("/auth/verify", h.VerifyOTP)
	r.Post("/auth/web3", h.SignInWithWeb3)
	r.Post("/auth/signout", h.SignOut)
	r.Get("/dashboard", h.Dashboard)
}

// SendOTP emails a one-time sign-in code.
func (h *Handler) SendOTP(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())

	var req sendOTPRequest
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, h.errDomain, err, logger)
		return
	}
	email, ok := h.validateEmail(rw, req.Email, logger)
	if !ok {
		return
	}

	if err := h.provider.SendOTP(r.Context(), email); err != nil {
		if restapi.StatusCodeOf(err) == http.StatusTooManyRequests {
			restapi.RespondTooManyRequests(rw, h.errDomain, MsgTooManyAttempts, 0, logger)
			return
		}
		logger.Error("verification code not sent", log.String("email", email), log.Error(err))
		h.respondInternal(rw, MsgSendCodeFailed, logger)
		return
	}
	logger.Info("verification code sent", log.String("email", email))
	restapi.RespondMessage(rw, http.StatusOK, MsgCodeSent, logger)
}

// VerifyOTP exchanges the emailed code for a session and sets session cookies.
func (h *Handler) VerifyOTP(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())

	var req verifyOTPRequest
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, h.errDomain, err, logger)
		return
	}
	email, ok := h.validateEmail(rw, req.Email, logger)
	if !ok {
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		h.respondBadRequest(rw, MsgCodeRequired, logger)
		return
	}

	session, err := h.provider.VerifyOTP(r.Context(), email, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			logger.Info("verification code rejected", log.String("email", email))
			restapi.RespondError(rw, http.StatusUnauthorized,
				restapi.NewError(h.errDomain, restapi.ErrCodeUnauthorized, MsgInvalidCode), logger)
			return
		}
		logger.Error("verification code not checked", log.String("email", email), log.Error(err))
		h.respondInternal(rw, MsgVerifyFailed, logger)
		return
	}

	h.cookies.set(rw, session)
	logger.Info("signed in", log.String("method", "otp"), log.String("user_id", session.User.ID))
	restapi.RespondJSON(rw, UserResponse{User: session.User}, logger)
}

// SignInWithWeb3 verifies a signed wallet message and sets session cookies.
func (h *Handler) SignInWithWeb3(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())

	var req web3Request
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, h.errDomain, err, logger)
		return
	}
	switch {
	case req.Chain != ChainSolana && req.Chain != ChainEthereum:
		h.respondBadRequest(rw, MsgUnsupportedChain, logger)
		return
	case req.Signature == "":
		h.respondBadRequest(rw, MsgSignatureRequired, logger)
		return
	case !strings.Contains(req.Message, h.termsStatement):
		h.respondBadRequest(rw, MsgTermsNotAccepted, logger)
		return
	}

	session, err := h.provider.SignInWithWeb3(r.Context(), req.Web3Credentials)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Info("wallet signature rejected", log.String("chain", req.Chain))
			restapi.RespondError(rw, http.StatusUnauthorized,
				restapi.NewError(h.errDomain, restapi.ErrCodeUnauthorized, MsgInvalidWallet), logger)
			return
		}
		logger.Error("wallet sign-in failed", log.String("chain", req.Chain), log.Error(err))
		h.respondInternal(rw, MsgWeb3SignInFailed, logger)
		return
	}

	h.cookies.set(rw, session)
	resp := Web3Response{User: session.User, Device: DeviceInfo(r.UserAgent()), Risk: req.Wallet.Assess()}
	logger.Info("signed in",
		log.String("method", "web3"),
		log.String("chain", req.Chain),
		log.String("user_id", session.User.ID),
		log.String("device_type", resp.Device.Type),
		log.String("browser", resp.Device.Browser),
		log.String("risk_score", resp.Risk.RiskScore),
	)
	restapi.RespondJSON(rw, resp, logger)
}

// SignOut revokes the session, clears session cookies and redirects to the login page.
// A session the provider no longer knows is treated as already signed out.
func (h *Handler) SignOut(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())

	if accessToken := cookieValue(r, AccessTokenCookie); accessToken != "" {
		if err := h.provider.SignOut(r.Context(), accessToken); err != nil && !errors.Is(err, ErrUnauthenticated) {
			logger.Error("sign out failed", log.Error(err))
			h.respondInternal(rw, MsgSignOutFailed, logger)
			return
		}
	}
	h.cookies.clear(rw)
	http.Redirect(rw, r, h.loginPath, http.StatusSeeOther)
}

// Dashboard returns the signed-in user.
func (h *Handler) Dashboard(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())
	user := GetUserFromContext(r.Context())
	if user == nil {
		restapi.RespondError(rw, http.StatusUnauthorized,
			restapi.NewError(h.errDomain, restapi.ErrCodeUnauthorized, MsgAuthRequired), logger)
		return
	}
	restapi.RespondJSON(rw, UserResponse{User: *user}, logger)
}

func (h *Handler) validateEmail(rw http.ResponseWriter, email string, logger log.FieldLogger) (string, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		h.respondBadRequest(rw, MsgEmailRequired, logger)
		return "", false
	}
	if !mailer.IsValidAddress(email) {
		h.respondBadRequest(rw, MsgInvalidEmail, logger)
		return "", false
	}
	return strings.ToLower(email), true
}

func (h *Handler) respondBadRequest(rw http.ResponseWriter, msg string, logger log.FieldLogger) {
	restapi.RespondError(rw, http.StatusBadRequest, restapi.NewError(h.errDomain, restapi.ErrCodeBadRequest, msg), logger)
}

func (h *Handler) respondInternal(rw http.ResponseWriter, msg string, logger log.FieldLogger) {
	restapi.RespondError(rw, http.StatusInternalServerError, restapi.NewError(h.errDomain, restapi.ErrCodeInternal, msg), logger)
}
