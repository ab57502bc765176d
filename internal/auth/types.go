package auth

import "time"

// User is the persisted account record: identity, credential and session
// state. The refresh-token slot is single-valued: a new login overwrites
// it, which revokes every earlier session (see Service).
type User struct {
	ID                 string
	StudentCode        string
	Email              string
	FullName           string
	PasswordHash       string
	GroupID            string
	Metadata           *GoogleIdentity
	TFA                TFAState
	RefreshToken       string
	ResetPasswordToken string
	LastSignInAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TFAState tracks two-factor setup. Secret is present only while setup is
// in progress or TFA is enabled.
type TFAState struct {
	Enabled bool   `json:"enabled"`
	Secret  string `json:"secret,omitempty"`
}

// GoogleIdentity is the federated-identity binding stored on the user
// record after connectGoogle.
type GoogleIdentity struct {
	Provider    string `json:"provider"`
	ProviderID  string `json:"provider_id"`
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url"`
}

// UserInfo is the public projection of a user: safe to serialize, never
// carries the password hash, refresh token or TFA secret.
type UserInfo struct {
	ID           string            `json:"id"`
	StudentCode  string            `json:"student_code"`
	Email        string            `json:"email"`
	FullName     string            `json:"full_name"`
	GroupID      string            `json:"group_id,omitempty"`
	Metadata     map[string]string `json:"metadata"`
	TFAEnabled   bool              `json:"tfa_enabled"`
	LastSignInAt *time.Time        `json:"last_sign_in_at,omitempty"`
}

// Info returns the sanitized projection of u.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:           u.ID,
		StudentCode:  u.StudentCode,
		Email:        u.Email,
		FullName:     u.FullName,
		GroupID:      u.GroupID,
		Metadata:     u.metadataMap(),
		TFAEnabled:   u.TFA.Enabled,
		LastSignInAt: u.LastSignInAt,
	}
}

func (u *User) metadataMap() map[string]string {
	if u.Metadata == nil {
		return map[string]string{}
	}
	return map[string]string{
		"provider":     u.Metadata.Provider,
		"provider_id":  u.Metadata.ProviderID,
		"uid":          u.Metadata.UID,
		"display_name": u.Metadata.DisplayName,
		"photo_url":    u.Metadata.PhotoURL,
	}
}
