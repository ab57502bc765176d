package httpapi

import (
	"net/http"

	"fpolysms.io/internal/audit"
	"fpolysms.io/internal/auth"
)

func (a *API) sessionCookie(name, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if a.cfg.Production() {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// setSessionCookies installs both session cookies. The refresh token
// travels only in the cookie, never in a response body.
func (a *API) setSessionCookies(w http.ResponseWriter, res auth.LoginResult) {
	http.SetCookie(w, a.sessionCookie(accessCookie, res.AccessToken, int(a.cfg.Auth.AccessTTL.Seconds())))
	http.SetCookie(w, a.sessionCookie(refreshCookie, res.RefreshToken, int(a.cfg.Auth.RefreshTTL.Seconds())))
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, a.sessionCookie(accessCookie, "", -1))
	http.SetCookie(w, a.sessionCookie(refreshCookie, "", -1))
}

func (a *API) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":      user.ID,
		"student_code": user.StudentCode,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

type signInRequest struct {
	StudentCode string `json:"student_code"`
	Password    string `json:"password"`
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.auth.LoginWithCredentials(r.Context(), in.StudentCode, in.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.finishLogin(w, r, res, "credentials")
}

type googleTokenRequest struct {
	IDToken string `json:"id_token"`
}

func (a *API) handleSignInGoogle(w http.ResponseWriter, r *http.Request) {
	var in googleTokenRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if a.google == nil {
		writeError(w, r, http.StatusBadRequest, "google sign-in is not configured")
		return
	}
	identity, err := a.google.VerifyIDToken(r.Context(), in.IDToken)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid google id token")
		return
	}
	res, err := a.auth.LoginWithGoogle(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.finishLogin(w, r, res, "google")
}

// finishLogin completes either branch of a login attempt. A TFA-gated
// account gets only a short-lived temporary token and no cookies.
func (a *API) finishLogin(w http.ResponseWriter, r *http.Request, res auth.LoginResult, method string) {
	if res.TFARequired {
		writeJSON(w, http.StatusOK, map[string]any{
			"tfa_required":    true,
			"temporary_token": res.TemporaryToken,
		})
		return
	}
	a.setSessionCookies(w, res)
	_ = audit.LogEvent(r.Context(), "auth.sign_in", map[string]any{
		"user_id": res.UserInfo.ID,
		"method":  method,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         res.UserInfo,
		"access_token": res.AccessToken,
	})
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := a.auth.SignOut(r.Context(), identity.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.clearSessionCookies(w)
	_ = audit.LogEvent(r.Context(), "auth.sign_out", nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Signed out"})
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		writeError(w, r, http.StatusUnauthorized, "refresh token cookie is required")
		return
	}
	access, err := a.auth.Refresh(r.Context(), c.Value)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, a.sessionCookie(accessCookie, access, int(a.cfg.Auth.AccessTTL.Seconds())))
	writeJSON(w, http.StatusOK, map[string]any{"access_token": access})
}

func (a *API) handleConnectGoogle(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}
	var in googleTokenRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if a.google == nil {
		writeError(w, r, http.StatusBadRequest, "google sign-in is not configured")
		return
	}
	gid, err := a.google.VerifyIDToken(r.Context(), in.IDToken)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid google id token")
		return
	}
	msg, err := a.auth.ConnectGoogle(r.Context(), identity.UserID, gid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (a *API) handleDisconnectGoogle(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}
	if err := a.auth.DisconnectGoogle(r.Context(), identity.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Disconnected successfully"})
}

func (a *API) handleEnableTFA(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}
	qr, err := a.auth.EnableTFA(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"qr_code": qr})
}

type tfaCodeRequest struct {
	Code string `json:"code"`
}

func (a *API) handleVerifyTFA(w http.ResponseWriter, r *http.Request) {
	a.verifyTFA(w, r, auth.TFAEnable)
}

func (a *API) handleDisableTFA(w http.ResponseWriter, r *http.Request) {
	a.verifyTFA(w, r, auth.TFADisable)
}

func (a *API) verifyTFA(w http.ResponseWriter, r *http.Request, mode auth.TFAMode) {
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}
	var in tfaCodeRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.VerifyTFA(r.Context(), identity.UserID, in.Code, mode); err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.tfa_"+string(mode), nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Two-factor authentication " + string(mode) + "d"})
}

type verifyTFASignInRequest struct {
	TemporaryToken string `json:"temporary_token"`
	Code           string `json:"code"`
}

func (a *API) handleVerifyTFASignIn(w http.ResponseWriter, r *http.Request) {
	var in verifyTFASignInRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.auth.VerifyTFAForSignIn(r.Context(), in.TemporaryToken, in.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.finishLogin(w, r, res, "credentials+tfa")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotPasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), in.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password reset email sent"})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), in.Token, in.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password has been reset"})
}
