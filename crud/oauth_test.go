package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"miniTweet/domain"
	"miniTweet/errs"
)

func TestOAuthByProvider(t *testing.T) {
	s := newTestServices(t)
	user := createUser(t, s, "Octocat")
	ctx := context.Background()

	_, err := s.OAuth.ByProvider(ctx, domain.OAuthProviderGithub, "583231")
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	link := &domain.OAuth{UserID: user.ID, Provider: domain.OAuthProviderGithub, ProviderID: "583231"}
	require.NoError(t, s.OAuth.Create(ctx, link))

	found, err := s.OAuth.ByProvider(ctx, domain.OAuthProviderGithub, "583231")
	require.NoError(t, err)
	require.Equal(t, link.ID, found.ID)
	require.NotNil(t, found.User)
	require.Equal(t, user.ID, found.User.ID)

	// The same provider account can only be linked once.
	dup := &domain.OAuth{UserID: user.ID, Provider: domain.OAuthProviderGithub, ProviderID: "583231"}
	require.Error(t, s.OAuth.Create(ctx, dup))
}

func TestOAuthCreateValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	require.Equal(t, errs.EINVALID, errs.ErrorCode(s.OAuth.Create(ctx, &domain.OAuth{Provider: "github", ProviderID: "1"})))
	require.Equal(t, errs.EINVALID, errs.ErrorCode(s.OAuth.Create(ctx, &domain.OAuth{UserID: 1, ProviderID: "1"})))
	require.Equal(t, errs.EINVALID, errs.ErrorCode(s.OAuth.Create(ctx, &domain.OAuth{UserID: 1, Provider: "github"})))
}
