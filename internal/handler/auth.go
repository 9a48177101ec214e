package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/pips-puzzles/internal/apperror"
	"github.com/sakif/pips-puzzles/internal/auth"
	"github.com/sakif/pips-puzzles/internal/model"
	"github.com/sakif/pips-puzzles/internal/repository"
)

// AuthHandler manages the Google OAuth login flow and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGoogleLogin    → redirect the browser to Google's authorization page
//   - HandleGoogleCallback → receive the code, reconcile the user, issue the session
//   - HandleLogout         → clear the session cookie
//   - HandleMe             → return the currently signed-in user's profile
//
// IDENTITY RECONCILIATION LIVES HERE:
// The user repository only does plain CRUD. The "find by subject id → update
// profile, else create" dance on every sign-in is this handler's job — it's
// the one place that sees both the Google profile and the local account.
type AuthHandler struct {
	google *auth.GoogleProvider
	tokens *auth.TokenService
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	google *auth.GoogleProvider,
	tokens *auth.TokenService,
	users repository.UserRepository,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		google: google,
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// HandleGoogleLogin redirects the user to Google's authorization page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When Google calls back, HandleGoogleCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	// Generate a random, unguessable state value
	state := xid.New().String()

	// Store it in a cookie so we can verify it on callback
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes — enough for the consent screen
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect the browser to Google
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Google user profile
//  3. Reconcile the user: find by subject id → refresh profile, else create
//  4. Issue a JWT session token stored in an HttpOnly cookie
//  5. Redirect to the app home page
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Check if Google sent an error (user denied authorization)
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for the Google user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 3: Reconcile the local account ---
	user, err := h.reconcileUser(r, gUser)
	if err != nil {
		h.logger.Error("auth callback: user reconciliation failed",
			slog.String("googleID", gUser.Sub),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("user authenticated",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)

	// --- Step 4: Issue the session cookie ---
	tokenStr, err := h.tokens.Generate(user.ID)
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = cookie is sent on top-level navigations but not cross-site POSTs.
	// Secure should be true in production (HTTPS only). We leave it false for local dev.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})

	// --- Step 5: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// reconcileUser maps a Google profile onto a local account:
//   - existing account for this subject id → overwrite the provider-sourced
//     fields (name/email/picture change on Google's side, we follow)
//   - no account → create one
//
// The subject id ("sub") is the key, NOT the email — emails change, subjects
// don't.
func (h *AuthHandler) reconcileUser(r *http.Request, gUser *auth.GoogleUser) (*model.User, error) {
	existing, err := h.users.GetUserByGoogleID(r.Context(), gUser.Sub)
	if err == nil {
		existing.GoogleID = gUser.Sub
		existing.Email = gUser.Email
		existing.Name = gUser.Name
		existing.Picture = gUser.Picture
		if err := h.users.UpdateUser(r.Context(), existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	user := &model.User{
		GoogleID: gUser.Sub,
		Email:    gUser.Email,
		Name:     gUser.Name,
		Picture:  gUser.Picture,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		return nil, err
	}
	return user, nil
}

// HandleLogout clears the session cookie, effectively logging the user out.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL. POST ensures intentional action.
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeSuccess(w, http.StatusOK, nil, "logged out")
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets the user id in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	// Auth middleware has already validated the JWT on this route.
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen behind RequireAuth, but be safe.
		writeError(w, apperror.Unauthorized("Authentication required"))
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.Int64("userID", userID))
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, "ok")
}
