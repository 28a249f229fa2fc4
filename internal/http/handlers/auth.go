package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/reelsmith/reelsmith/internal/auth"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/http/middleware"
	"github.com/reelsmith/reelsmith/internal/mail"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/ratelimit"
	"github.com/reelsmith/reelsmith/internal/repository"
)

// Registration validation bounds.
const (
	maxEmailLen     = 254
	minPasswordLen  = 10
	maxPasswordLen  = 200
	maxCountryLen   = 64
	maxOpinionLen   = 2000
	maxUserAgentLen = 300

	// inviteMintAttempts bounds retries on invite code collisions.
	inviteMintAttempts = 50

	// rateLimitWindow is the bucket size of all auth rate limits.
	rateLimitWindow = time.Hour
)

var (
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)
)

// referralAllowlist is the accepted set of acquisition channels.
var referralAllowlist = map[string]bool{
	"x": true, "reddit": true, "youtube": true, "tiktok": true,
	"discord": true, "github": true, "product_hunt": true,
	"friend": true, "other": true,
}

// AuthHandler handles authentication endpoints: the OTP flow, the
// password-plus-invite flow, and session management.
type AuthHandler struct {
	cfg       config.AuthConfig
	inviteCfg config.InviteConfig
	users     *repository.UserRepository
	sessions  *repository.SessionRepository
	otps      *repository.OTPRepository
	invites   *repository.InviteRepository
	limiter   *ratelimit.Limiter
	secrets   *auth.Secrets
	mailer    mail.Mailer
	logger    *slog.Logger

	allowlist []string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	cfg config.AuthConfig,
	inviteCfg config.InviteConfig,
	users *repository.UserRepository,
	sessions *repository.SessionRepository,
	otps *repository.OTPRepository,
	invites *repository.InviteRepository,
	limiter *ratelimit.Limiter,
	secrets *auth.Secrets,
	mailer mail.Mailer,
	log *slog.Logger,
) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		cfg:       cfg,
		inviteCfg: inviteCfg,
		users:     users,
		sessions:  sessions,
		otps:      otps,
		invites:   invites,
		limiter:   limiter,
		secrets:   secrets,
		mailer:    mailer,
		logger:    log,
		allowlist: cfg.AllowlistEmails(),
	}
}

// Register registers the auth routes with the API.
func (h *AuthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "requestCode",
		Method:      "POST",
		Path:        "/api/auth/request_code",
		Summary:     "Request login code",
		Description: "Emails a one-time login code",
		Tags:        []string{"Auth"},
	}, h.RequestCode)

	huma.Register(api, huma.Operation{
		OperationID: "verifyCode",
		Method:      "POST",
		Path:        "/api/auth/verify_code",
		Summary:     "Verify login code",
		Description: "Exchanges a one-time code for a session cookie",
		Tags:        []string{"Auth"},
	}, h.VerifyCode)

	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      "POST",
		Path:        "/api/auth/register",
		Summary:     "Register account",
		Description: "Creates a password account, redeeming an invite code",
		Tags:        []string{"Auth"},
	}, h.RegisterAccount)

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      "POST",
		Path:        "/api/auth/login",
		Summary:     "Log in",
		Description: "Exchanges username and password for a session cookie",
		Tags:        []string{"Auth"},
	}, h.Login)

	huma.Register(api, huma.Operation{
		OperationID: "listInvites",
		Method:      "GET",
		Path:        "/api/auth/invites",
		Summary:     "List invites",
		Description: "Returns the caller's unredeemed invite codes",
		Tags:        []string{"Auth"},
	}, h.ListInvites)

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      "GET",
		Path:        "/api/auth/me",
		Summary:     "Current session",
		Description: "Returns the authenticated identity, if any",
		Tags:        []string{"Auth"},
	}, h.Me)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      "POST",
		Path:        "/api/auth/logout",
		Summary:     "Log out",
		Description: "Revokes the current session and clears the cookie",
		Tags:        []string{"Auth"},
	}, h.Logout)
}

// RequestCodeInput is the input for requesting a login code.
type RequestCodeInput struct {
	Body struct {
		Email string `json:"email" maxLength:"254" doc:"Address to send the code to"`
	}
}

// RequestCodeOutput acknowledges that a code was sent.
type RequestCodeOutput struct {
	Body struct {
		Sent bool `json:"sent"`
	}
}

// RequestCode emails a one-time login code.
func (h *AuthHandler) RequestCode(ctx context.Context, input *RequestCodeInput) (*RequestCodeOutput, error) {
	if !h.cfg.Enabled {
		return nil, huma.Error403Forbidden("AUTH_DISABLED")
	}

	email, err := h.normalizeEmail(input.Body.Email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ip := middleware.RequestClientIP(ctx)
	if err := h.allow(ctx, "auth:request_code:ip", ip, h.cfg.RLRequestCodePerIPPerHour, now); err != nil {
		return nil, err
	}
	if err := h.allow(ctx, "auth:request_code:email", email, h.cfg.RLRequestCodePerEmailPerHour, now); err != nil {
		return nil, err
	}

	if h.cfg.OTPMinIntervalSeconds > 0 {
		latest, err := h.otps.LatestByEmail(ctx, email)
		if err != nil {
			h.logger.Error("failed to load latest otp", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
		if latest != nil && now.Sub(latest.CreatedAt) < time.Duration(h.cfg.OTPMinIntervalSeconds)*time.Second {
			return nil, huma.Error429TooManyRequests("OTP_TOO_FREQUENT")
		}
	}

	code, err := auth.NewOTPCode()
	if err != nil {
		h.logger.Error("failed to generate otp code", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	row := &models.OTPCode{
		Email:     email,
		CodeHash:  h.secrets.HashOTP(email, code),
		ExpiresAt: now.Add(time.Duration(h.cfg.OTPTTLMinutes) * time.Minute),
	}
	if err := h.otps.Create(ctx, row); err != nil {
		h.logger.Error("failed to store otp code", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	if err := h.mailer.SendOTP(ctx, email, code); err != nil {
		h.logger.Error("failed to send otp mail", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("OTP_SEND_FAILED")
	}

	out := &RequestCodeOutput{}
	out.Body.Sent = true
	return out, nil
}

// VerifyCodeInput is the input for exchanging a code for a session.
type VerifyCodeInput struct {
	Body struct {
		Email string `json:"email" maxLength:"254" doc:"Address the code was sent to"`
		Code  string `json:"code" minLength:"6" maxLength:"6" doc:"The 6-digit code"`
	}
}

// SessionOutput is the response of the session-minting endpoints.
type SessionOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Authenticated bool     `json:"authenticated"`
		UserID        string   `json:"user_id,omitempty"`
		Username      string   `json:"username,omitempty"`
		Email         string   `json:"email,omitempty"`
		Invites       []string `json:"invites,omitempty"`
	}
}

// VerifyCode exchanges a one-time code for a session cookie.
func (h *AuthHandler) VerifyCode(ctx context.Context, input *VerifyCodeInput) (*SessionOutput, error) {
	if !h.cfg.Enabled {
		return nil, huma.Error403Forbidden("AUTH_DISABLED")
	}

	email, err := h.normalizeEmail(input.Body.Email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := h.allow(ctx, "auth:verify:email", email, h.cfg.RLVerifyPerEmailPerHour, now); err != nil {
		return nil, err
	}

	codes, err := h.otps.ListUsableByEmail(ctx, email, now)
	if err != nil {
		h.logger.Error("failed to list otp codes", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	want := h.secrets.HashOTP(email, input.Body.Code)
	var matched *models.OTPCode
	for _, row := range codes {
		if auth.ConstantTimeEquals(row.CodeHash, want) {
			matched = row
			break
		}
	}

	if matched == nil {
		if len(codes) > 0 {
			newest := codes[0]
			newest.Attempts++
			if h.cfg.OTPMaxVerifyAttempts > 0 && newest.Attempts >= h.cfg.OTPMaxVerifyAttempts {
				newest.ConsumedAt = &now
			}
			if err := h.otps.Update(ctx, newest); err != nil {
				h.logger.Warn("failed to bump otp attempts", slog.String("error", err.Error()))
			}
		}
		return nil, huma.Error400BadRequest("CODE_INVALID")
	}

	matched.ConsumedAt = &now
	if err := h.otps.Update(ctx, matched); err != nil {
		h.logger.Error("failed to consume otp code", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		h.logger.Error("failed to load user", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if user == nil {
		user = &models.UserAccount{Email: email}
		if err := h.users.Create(ctx, user); err != nil {
			h.logger.Error("failed to create user", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
	}

	return h.sessionResponse(ctx, user, nil, now)
}

// RegisterInput is the input for password registration.
type RegisterInput struct {
	UserAgent string `header:"User-Agent"`
	Body      struct {
		InviteCode string `json:"invite_code,omitempty" maxLength:"64" doc:"Invite code, required when invites are enabled"`
		Email      string `json:"email" maxLength:"254" doc:"Account email"`
		Username   string `json:"username,omitempty" maxLength:"24" doc:"Login name, lowercase letters, digits, underscores"`
		Password   string `json:"password" maxLength:"200" doc:"Password, at least 10 characters"`
		Country    string `json:"country" maxLength:"64" doc:"Country of residence"`
		Referral   string `json:"referral" maxLength:"32" doc:"How the caller heard about the service"`
		Opinion    string `json:"opinion,omitempty" maxLength:"2000" doc:"Optional free-form feedback"`
	}
}

// RegisterAccount creates a password account, redeeming an invite code.
func (h *AuthHandler) RegisterAccount(ctx context.Context, input *RegisterInput) (*SessionOutput, error) {
	if !h.cfg.Enabled {
		return nil, huma.Error403Forbidden("AUTH_DISABLED")
	}

	email, err := h.normalizeEmail(input.Body.Email)
	if err != nil {
		return nil, err
	}
	username := strings.ToLower(strings.TrimSpace(input.Body.Username))
	if username != "" && !usernameRe.MatchString(username) {
		return nil, huma.Error400BadRequest("USERNAME_INVALID")
	}
	if len(input.Body.Password) < minPasswordLen {
		return nil, huma.Error400BadRequest("PASSWORD_TOO_WEAK")
	}
	if len(input.Body.Password) > maxPasswordLen {
		return nil, huma.Error400BadRequest("PASSWORD_TOO_LONG")
	}
	country := strings.TrimSpace(input.Body.Country)
	if country == "" || len(country) > maxCountryLen {
		return nil, huma.Error400BadRequest("COUNTRY_INVALID")
	}
	if !referralAllowlist[strings.TrimSpace(input.Body.Referral)] {
		return nil, huma.Error400BadRequest("REFERRAL_INVALID")
	}
	opinion := input.Body.Opinion
	if len(opinion) > maxOpinionLen {
		opinion = opinion[:maxOpinionLen]
	}

	now := time.Now()
	ip := middleware.RequestClientIP(ctx)
	if err := h.allow(ctx, "auth:register:ip", ip, h.cfg.RLRegisterPerIPPerHour, now); err != nil {
		return nil, err
	}
	if err := h.allow(ctx, "auth:register:email", email, h.cfg.RLRegisterPerEmailPerHour, now); err != nil {
		return nil, err
	}

	inviteCode := auth.NormalizeInviteCode(input.Body.InviteCode)
	if h.inviteCfg.Enabled {
		if inviteCode == "" {
			return nil, huma.Error400BadRequest("INVITE_REQUIRED")
		}
		invite, err := h.invites.GetByCode(ctx, inviteCode)
		if err != nil {
			h.logger.Error("failed to load invite", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
		if invite == nil {
			return nil, huma.Error400BadRequest("INVITE_INVALID")
		}
		if invite.DisabledAt != nil {
			return nil, huma.Error400BadRequest("INVITE_DISABLED")
		}
		if invite.RedeemedAt != nil {
			return nil, huma.Error400BadRequest("INVITE_USED")
		}
	}

	if existing, err := h.users.GetByEmail(ctx, email); err != nil {
		h.logger.Error("failed to check email", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	} else if existing != nil {
		return nil, huma.Error400BadRequest("EMAIL_TAKEN")
	}
	if username != "" {
		if existing, err := h.users.GetByUsername(ctx, username); err != nil {
			h.logger.Error("failed to check username", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		} else if existing != nil {
			return nil, huma.Error400BadRequest("USERNAME_TAKEN")
		}
	}

	hash, err := auth.HashPassword(input.Body.Password)
	if err != nil {
		h.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	user := &models.UserAccount{Email: email, PasswordHash: hash}
	if username != "" {
		user.Username = &username
	}
	if err := h.users.Create(ctx, user); err != nil {
		h.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	userAgent := input.UserAgent
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	lead := &models.UserLead{
		Email:     email,
		Country:   country,
		Referral:  strings.TrimSpace(input.Body.Referral),
		Opinion:   opinion,
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := h.users.UpsertLead(ctx, lead); err != nil {
		h.logger.Warn("failed to store registration lead", slog.String("error", err.Error()))
	}

	if h.inviteCfg.Enabled {
		ok, err := h.invites.Redeem(ctx, inviteCode, user.PrincipalID(), now)
		if err != nil {
			h.logger.Error("failed to redeem invite", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
		if !ok {
			return nil, huma.Error400BadRequest("INVITE_USED")
		}
	}

	var children []string
	if h.inviteCfg.Enabled {
		children, err = h.mintInvites(ctx, inviteCode, user.PrincipalID())
		if err != nil {
			h.logger.Error("failed to mint invites", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INVITE_GENERATE_FAILED")
		}
	}

	return h.sessionResponse(ctx, user, children, now)
}

// mintInvites creates the new account's handout codes, retrying on the rare
// code collision.
func (h *AuthHandler) mintInvites(ctx context.Context, parentCode, ownerPrincipalID string) ([]string, error) {
	count := h.inviteCfg.ChildrenPerRedeem
	if count <= 0 {
		return nil, nil
	}

	codes := make([]string, 0, count)
	for len(codes) < count {
		var created bool
		var lastErr error
		for attempt := 0; attempt < inviteMintAttempts; attempt++ {
			code, err := auth.NewInviteCode(h.inviteCfg.CodePrefix)
			if err != nil {
				lastErr = err
				continue
			}
			invite := &models.InviteCode{
				Code:             code,
				ParentCode:       parentCode,
				OwnerPrincipalID: ownerPrincipalID,
				CreatedAt:        models.Now(),
			}
			if err := h.invites.Create(ctx, invite); err != nil {
				lastErr = err
				continue
			}
			codes = append(codes, code)
			created = true
			break
		}
		if !created {
			return nil, lastErr
		}
	}
	return codes, nil
}

// LoginInput is the input for password login.
type LoginInput struct {
	Body struct {
		Username string `json:"username" maxLength:"24" doc:"Login name"`
		Password string `json:"password" maxLength:"200" doc:"Password"`
	}
}

// Login exchanges username and password for a session cookie.
func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
	if !h.cfg.Enabled {
		return nil, huma.Error403Forbidden("AUTH_DISABLED")
	}

	now := time.Now()
	ip := middleware.RequestClientIP(ctx)
	if err := h.allow(ctx, "auth:login:ip", ip, h.cfg.RLLoginPerIPPerHour, now); err != nil {
		return nil, err
	}

	username := strings.ToLower(strings.TrimSpace(input.Body.Username))
	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		h.logger.Error("failed to load user", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if user == nil || user.PasswordHash == "" || !auth.VerifyPassword(input.Body.Password, user.PasswordHash) {
		return nil, huma.Error401Unauthorized("LOGIN_FAILED")
	}

	return h.sessionResponse(ctx, user, nil, now)
}

// InviteListOutput wraps the caller's unredeemed invite codes.
type InviteListOutput struct {
	Body struct {
		Invites []string `json:"invites"`
	}
}

// ListInvites returns the caller's unredeemed invite codes.
func (h *AuthHandler) ListInvites(ctx context.Context, _ *struct{}) (*InviteListOutput, error) {
	principal := middleware.Principal(ctx)
	if principal == "" {
		return nil, huma.Error401Unauthorized("AUTH_REQUIRED")
	}

	invites, err := h.invites.ListUnredeemedByOwner(ctx, principal)
	if err != nil {
		h.logger.Error("failed to list invites", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	out := &InviteListOutput{}
	out.Body.Invites = make([]string, 0, len(invites))
	for _, inv := range invites {
		out.Body.Invites = append(out.Body.Invites, inv.Code)
	}
	return out, nil
}

// MeOutput reports the authenticated identity, if any.
type MeOutput struct {
	Body struct {
		Authenticated bool   `json:"authenticated"`
		UserID        string `json:"user_id,omitempty"`
		Username      string `json:"username,omitempty"`
		Email         string `json:"email,omitempty"`
	}
}

// Me returns the authenticated identity, if any.
func (h *AuthHandler) Me(ctx context.Context, _ *struct{}) (*MeOutput, error) {
	out := &MeOutput{}

	principal := middleware.Principal(ctx)
	if principal == "" {
		return out, nil
	}

	id, err := models.ParseULID(principal)
	if err != nil {
		return out, nil
	}
	user, err := h.users.GetByID(ctx, id)
	if err != nil {
		h.logger.Error("failed to load user", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if user == nil {
		return out, nil
	}

	out.Body.Authenticated = true
	out.Body.UserID = user.ID.String()
	out.Body.Email = user.Email
	if user.Username != nil {
		out.Body.Username = *user.Username
	}
	return out, nil
}

// LogoutOutput clears the session cookie.
type LogoutOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Authenticated bool `json:"authenticated"`
	}
}

// Logout revokes the presented session and clears the cookie. Idempotent;
// requests without a session still get the clearing cookie.
func (h *AuthHandler) Logout(ctx context.Context, _ *struct{}) (*LogoutOutput, error) {
	if hash := middleware.SessionTokenHash(ctx); hash != "" {
		if err := h.sessions.Revoke(ctx, hash, time.Now()); err != nil {
			h.logger.Warn("failed to revoke session", slog.String("error", err.Error()))
		}
	}

	out := &LogoutOutput{SetCookie: h.cookie("", -1)}
	return out, nil
}

// sessionResponse mints a session for the user and builds the cookie-bearing
// response body.
func (h *AuthHandler) sessionResponse(ctx context.Context, user *models.UserAccount, invites []string, now time.Time) (*SessionOutput, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		h.logger.Error("failed to generate session token", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	ttl := time.Duration(h.cfg.SessionTTLDays) * 24 * time.Hour
	session := &models.AuthSession{
		PrincipalID: user.PrincipalID(),
		TokenHash:   h.secrets.HashSessionToken(token),
		ExpiresAt:   now.Add(ttl),
	}
	if err := h.sessions.Create(ctx, session); err != nil {
		h.logger.Error("failed to create session", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	out := &SessionOutput{SetCookie: h.cookie(token, int(ttl.Seconds()))}
	out.Body.Authenticated = true
	out.Body.UserID = user.ID.String()
	out.Body.Email = user.Email
	if user.Username != nil {
		out.Body.Username = *user.Username
	}
	out.Body.Invites = invites
	return out, nil
}

// cookie builds the session cookie with the configured attributes.
func (h *AuthHandler) cookie(value string, maxAge int) http.Cookie {
	name := h.cfg.SessionCookieName
	if name == "" {
		name = "reelsmith_session"
	}
	sameSite := http.SameSiteLaxMode
	switch strings.ToLower(h.cfg.SessionCookieSameSite) {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	}
	return http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.SessionCookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SessionCookieSecure,
		SameSite: sameSite,
	}
}

// normalizeEmail lowercases and validates an address.
func (h *AuthHandler) normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLen || !emailRe.MatchString(email) {
		return "", huma.Error400BadRequest("EMAIL_INVALID")
	}
	if len(h.allowlist) > 0 {
		allowed := false
		for _, a := range h.allowlist {
			if a == email {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", huma.Error403Forbidden("EMAIL_NOT_ALLOWED")
		}
	}
	return email, nil
}

// allow applies one rate limit bucket, mapping refusal to 429.
func (h *AuthHandler) allow(ctx context.Context, namespace, subject string, limit int, now time.Time) error {
	ok, err := h.limiter.Allow(ctx, namespace, subject, limit, rateLimitWindow, now)
	if err != nil {
		h.logger.Error("rate limit check failed", slog.String("error", err.Error()))
		return huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if !ok {
		return huma.Error429TooManyRequests("RL_LIMITED")
	}
	return nil
}
