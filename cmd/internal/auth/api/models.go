package authapi

import (
	"time"

	"github.com/abdihakim148/beekeeper/cmd/identity"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/authn"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type memberCreateRequest struct {
	PrincipalID identity.ID   `json:"principal_id"`
	Title       string        `json:"title"`
	Owner       bool          `json:"owner"`
	Roles       []identity.ID `json:"roles"`
}

type memberUpdateRequest struct {
	Title string        `json:"title"`
	Owner bool          `json:"owner"`
	Roles []identity.ID `json:"roles"`
}

type tokenResponse struct {
	Token     string     `json:"token"`
	TokenID   string     `json:"token_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type authResponse struct {
	Principal identity.Principal `json:"principal"`
	Session   tokenResponse      `json:"session"`
}

type meResponse struct {
	Principal identity.Principal `json:"principal"`
}

type membersResponse struct {
	Members []identity.Membership `json:"members"`
}

func toAuthResponse(issued authn.Issued) authResponse {
	return authResponse{
		Principal: issued.Principal,
		Session: tokenResponse{
			Token:     issued.Token,
			TokenID:   issued.Claims.ID,
			IssuedAt:  issued.Claims.IssuedAt,
			ExpiresAt: issued.Claims.Expiration,
		},
	}
}

func (r registerRequest) input() authn.RegisterInput {
	return authn.RegisterInput{Username: r.Username, Email: r.Email, Phone: r.Phone, Password: r.Password}
}
