package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fpolysms.io/internal/idp"
	"fpolysms.io/internal/ids"
	"fpolysms.io/internal/mail"
	"fpolysms.io/internal/tfa"
	"fpolysms.io/internal/token"
)

// Service orchestrates the credential/session lifecycle: registration,
// credential and federated login, token refresh, TFA enrollment and
// challenge, password reset. It owns no transport concerns; every
// dependency arrives through the constructor.
type Service struct {
	users  UserStore
	tokens *token.Service
	totp   *tfa.Service
	mailer mail.Sender
	now    func() time.Time

	mailFrom    string
	frontendURL string
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithMailer wires the outbound email sender used by ForgotPassword.
func WithMailer(sender mail.Sender, from string) Option {
	return func(s *Service) {
		s.mailer = sender
		s.mailFrom = from
	}
}

// WithFrontendURL sets the base URL embedded into password-reset links.
func WithFrontendURL(u string) Option {
	return func(s *Service) {
		s.frontendURL = strings.TrimRight(strings.TrimSpace(u), "/")
	}
}

// NewService constructs the session manager.
func NewService(users UserStore, tokens *token.Service, totp *tfa.Service, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("auth: user store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("auth: token service is required")
	}
	if totp == nil {
		return nil, fmt.Errorf("auth: tfa service is required")
	}
	s := &Service{
		users:  users,
		tokens: tokens,
		totp:   totp,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterInput carries the registration profile. The plaintext password
// is hashed before anything is persisted and never echoed back.
type RegisterInput struct {
	StudentCode string `json:"student_code"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Password    string `json:"password"`
	GroupID     string `json:"group_id"`
}

// Register creates a new user with TFA disabled and no federated binding.
func (s *Service) Register(ctx context.Context, in RegisterInput) (UserInfo, error) {
	in.StudentCode = strings.TrimSpace(in.StudentCode)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if in.StudentCode == "" || in.Email == "" || in.Password == "" {
		return UserInfo{}, E(StatusBadRequest, "student_code, email and password are required")
	}
	if !strings.Contains(in.Email, "@") {
		return UserInfo{}, E(StatusBadRequest, "valid email is required")
	}
	if in.GroupID != "" && !ids.IsValid(in.GroupID) {
		return UserInfo{}, E(StatusBadRequest, "malformed group id")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return UserInfo{}, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           ids.New(),
		StudentCode:  in.StudentCode,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		GroupID:      in.GroupID,
		TFA:          TFAState{Enabled: false},
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return UserInfo{}, err
	}
	return user.Info(), nil
}

// LoginResult is the outcome of a successful or TFA-pending login.
// TFARequired is a distinct terminal response, not an error: the caller
// must complete VerifyTFAForSignIn with the temporary token.
type LoginResult struct {
	TFARequired    bool
	TemporaryToken string
	AccessToken    string
	RefreshToken   string
	UserInfo       UserInfo
}

// LoginWithCredentials authenticates by login code and password.
func (s *Service) LoginWithCredentials(ctx context.Context, studentCode, password string) (LoginResult, error) {
	studentCode = strings.TrimSpace(studentCode)
	if studentCode == "" || password == "" {
		return LoginResult{}, E(StatusBadRequest, "student code and password are required")
	}

	user, err := s.users.FindByStudentCode(ctx, studentCode)
	if err != nil {
		return LoginResult{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, E(StatusUnauthorized, "password is incorrect")
	}

	if user.TFA.Enabled {
		temp, _, err := s.tokens.Issue(s.payloadFor(user), token.Temporary)
		if err != nil {
			return LoginResult{}, fmt.Errorf("issue temporary token: %w", err)
		}
		return LoginResult{TFARequired: true, TemporaryToken: temp}, nil
	}

	return s.completeLogin(ctx, user)
}

// LoginWithGoogle authenticates a previously connected federated
// identity. There is no implicit account creation: an unknown provider
// UID fails NotFound.
func (s *Service) LoginWithGoogle(ctx context.Context, identity idp.Identity) (LoginResult, error) {
	if strings.TrimSpace(identity.UID) == "" {
		return LoginResult{}, E(StatusBadRequest, "provider uid is required")
	}
	user, err := s.users.FindByGoogleUID(ctx, identity.UID)
	if err != nil {
		return LoginResult{}, err
	}
	return s.completeLogin(ctx, user)
}

// VerifyTFAForSignIn completes a TFA-gated login. The temporary token
// must still be valid; an expired one forces the caller to restart the
// login from credentials.
func (s *Service) VerifyTFAForSignIn(ctx context.Context, temporaryToken, code string) (LoginResult, error) {
	claims, err := s.tokens.Verify(temporaryToken, token.Temporary)
	if err != nil {
		return LoginResult{}, E(StatusUnauthorized, "temporary token invalid or expired")
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return LoginResult{}, err
	}

	ok, err := s.totp.VerifyCode(code, user.TFA.Secret)
	if err != nil || !ok {
		return LoginResult{}, E(StatusUnauthorized, "invalid OTP code")
	}
	return s.completeLogin(ctx, user)
}

// completeLogin issues the access/refresh pair and persists the refresh
// token plus the sign-in timestamp. Storing the token overwrites the
// previous one, invalidating any earlier session (single-slot model;
// concurrent logins on one account race last-writer-wins).
func (s *Service) completeLogin(ctx context.Context, user *User) (LoginResult, error) {
	payload := s.payloadFor(user)

	access, _, err := s.tokens.Issue(payload, token.Access)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.Issue(payload, token.Refresh)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	signedInAt := s.now().UTC()
	if err := s.users.RecordSignIn(ctx, user.ID, refresh, signedInAt); err != nil {
		return LoginResult{}, err
	}

	user.LastSignInAt = &signedInAt
	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		UserInfo:     user.Info(),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// token must match the value currently stored on some user record; a
// superseded token no longer matches and is rejected. The refresh token
// itself is not rotated here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", E(StatusBadRequest, "refresh token is required")
	}
	user, err := s.users.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if _, err := s.tokens.Verify(refreshToken, token.Refresh); err != nil {
		return "", E(StatusUnauthorized, "refresh token invalid or expired")
	}

	access, _, err := s.tokens.Issue(s.payloadFor(user), token.Access)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

// SignOut clears the stored refresh token, invalidating future refresh
// calls for the current session.
func (s *Service) SignOut(ctx context.Context, userID string) error {
	if !ids.IsValid(userID) {
		return E(StatusBadRequest, "malformed user id")
	}
	return s.users.ClearRefreshToken(ctx, userID)
}

// ConnectGoogle binds a verified federated identity to the user. The
// provider email must match the account email; a UID already bound to
// some account is reported as already connected, not an error.
func (s *Service) ConnectGoogle(ctx context.Context, userID string, identity idp.Identity) (string, error) {
	if !ids.IsValid(userID) {
		return "", E(StatusBadRequest, "malformed user id")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	if _, err := s.users.FindByGoogleUID(ctx, identity.UID); err == nil {
		return "Already connected", nil
	} else if StatusOf(err) != StatusNotFound {
		return "", err
	}

	if !strings.EqualFold(strings.TrimSpace(identity.Email), user.Email) {
		return "", E(StatusBadRequest, "email not matched")
	}

	md := &GoogleIdentity{
		Provider:    "Google",
		ProviderID:  identity.ProviderID,
		UID:         identity.UID,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		PhotoURL:    identity.PhotoURL,
	}
	if err := s.users.SetMetadata(ctx, userID, md); err != nil {
		return "", err
	}
	return "Connected successfully", nil
}

// DisconnectGoogle removes the federated binding.
func (s *Service) DisconnectGoogle(ctx context.Context, userID string) error {
	if !ids.IsValid(userID) {
		return E(StatusBadRequest, "malformed user id")
	}
	return s.users.SetMetadata(ctx, userID, nil)
}

// EnableTFA starts (or restarts) TFA enrollment: a fresh secret is
// generated and stored with enabled=false, and the provisioning QR code
// is returned. Only VerifyTFA with a valid code flips enabled to true.
func (s *Service) EnableTFA(ctx context.Context, userID string) (string, error) {
	if !ids.IsValid(userID) {
		return "", E(StatusBadRequest, "malformed user id")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("generate tfa secret: %w", err)
	}
	if err := s.users.SetTFASecret(ctx, userID, secret); err != nil {
		return "", err
	}

	uri := s.totp.ProvisioningURI(user.FullName, secret)
	img, err := tfa.RenderQRDataURL(uri)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	return img, nil
}

// TFAMode selects the direction of a VerifyTFA call.
type TFAMode string

const (
	TFAEnable  TFAMode = "enable"
	TFADisable TFAMode = "disable"
)

// VerifyTFA validates a code against the stored secret, then either
// enables TFA or disables it (clearing the secret).
func (s *Service) VerifyTFA(ctx context.Context, userID, code string, mode TFAMode) error {
	if !ids.IsValid(userID) {
		return E(StatusBadRequest, "malformed user id")
	}
	if mode != TFAEnable && mode != TFADisable {
		return E(StatusBadRequest, "unsupported mode")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TFA.Secret == "" {
		return E(StatusNotFound, "no TFA secret to verify against")
	}

	ok, err := s.totp.VerifyCode(code, user.TFA.Secret)
	if err != nil || !ok {
		return E(StatusUnauthorized, "invalid OTP code")
	}
	return s.users.SetTFAEnabled(ctx, userID, mode == TFAEnable)
}

// ForgotPassword issues a reset token, stores it on the user record and
// emails a reset link. The token stays valid until it expires or is
// consumed by ResetPassword.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return E(StatusBadRequest, "email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	resetToken, _, err := s.tokens.Issue(token.Payload{
		UserID:      user.ID,
		Email:       user.Email,
		StudentCode: user.StudentCode,
	}, token.Access)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, resetToken); err != nil {
		return err
	}

	if s.mailer == nil {
		return E(StatusInternal, "mail delivery is not configured")
	}
	link := s.frontendURL + "/reset-password?token=" + resetToken
	msg := mail.Message{
		From:    s.mailFrom,
		To:      user.Email,
		Subject: "Forgot Password",
		HTML:    resetPasswordHTML(link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return E(StatusInternal, "could not send reset email")
	}
	return nil
}

// ResetPassword consumes a reset token: the new password is hashed and
// stored, and the token slot is cleared in the same write, which makes
// the token single-use.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return E(StatusBadRequest, "new password is required")
	}
	if _, err := s.tokens.Verify(resetToken, token.Access); err != nil {
		return E(StatusUnauthorized, "reset link invalid or expired")
	}
	if _, err := s.users.FindByResetToken(ctx, resetToken); err != nil {
		if StatusOf(err) == StatusNotFound {
			return E(StatusUnauthorized, "invalid reset token")
		}
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.ResetPasswordByToken(ctx, resetToken, hash)
}

func (s *Service) payloadFor(user *User) token.Payload {
	return token.Payload{
		UserID:      user.ID,
		Email:       user.Email,
		StudentCode: user.StudentCode,
		FullName:    user.FullName,
		Metadata:    user.metadataMap(),
	}
}

func resetPasswordHTML(link string) string {
	return `<body>
  <h1>Reset Password</h1>
  <p>Please click the link below to reset your password.</p>
  <a href="` + link + `">Reset password</a>
</body>`
}
