package domain

import (
	"context"
	"time"
)

// OAuthProviderGithub is the Provider of OAuth links created by signing in with Github.
const OAuthProviderGithub = "github"

// OAuth links a User to an account at an external identity provider.
type OAuth struct {
	ID         int    `json:"id"`
	UserID     int    `json:"user_id" gorm:"notNull;index"`
	User       *User  `json:"user,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Provider   string `json:"provider" gorm:"notNull;uniqueIndex:idx_oauth_provider_account"`
	ProviderID string `json:"provider_id" gorm:"notNull;uniqueIndex:idx_oauth_provider_account"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OAuthService is a set of methods to manipulate and work with the OAuth model.
type OAuthService interface {
	ByProvider(ctx context.Context, provider, providerID string) (*OAuth, error)
	Create(ctx context.Context, oauth *OAuth) error
}
