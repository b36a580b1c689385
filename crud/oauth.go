package crud

import (
	"context"

	"gorm.io/gorm"

	"miniTweet/domain"
	"miniTweet/errs"
)

// OAuthService manages the links between local users and their accounts at
// external identity providers.
type OAuthService struct {
	oauthValidator
}

type oauthValidator struct {
	oauthGorm
}

type oauthGorm struct {
	db *gorm.DB
}

// NewOAuthService returns an instance of OAuthService.
func NewOAuthService(db *gorm.DB) *OAuthService {
	return &OAuthService{
		oauthValidator{
			oauthGorm{
				db: db,
			},
		},
	}
}

var _ domain.OAuthService = &OAuthService{}

// Create runs validations needed for creating new OAuth database records.
func (ov *oauthValidator) Create(ctx context.Context, oauth *domain.OAuth) error {
	err := runOAuthValFns(oauth,
		ov.userIdRequired,
		ov.providerRequired,
		ov.providerIdRequired)
	if err != nil {
		return err
	}
	return ov.oauthGorm.Create(ctx, oauth)
}

// runOAuthValFns runs any number of functions of type oauthValFn on the passed in OAuth object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runOAuthValFns(oauth *domain.OAuth, fns ...oauthValFn) error {
	for _, fn := range fns {
		if err := fn(oauth); err != nil {
			return err
		}
	}
	return nil
}

// A oauthValFn is any function that takes in a pointer to a domain.OAuth object and returns an error.
type oauthValFn = func(oauth *domain.OAuth) error

func (ov *oauthValidator) providerRequired(oauth *domain.OAuth) error {
	if oauth.Provider == "" {
		return errs.Errorf(errs.EINVALID, "OAuth provider is required.")
	}
	return nil
}

func (ov *oauthValidator) providerIdRequired(oauth *domain.OAuth) error {
	if oauth.ProviderID == "" {
		return errs.Errorf(errs.EINVALID, "OAuth provider account ID is required.")
	}
	return nil
}

func (ov *oauthValidator) userIdRequired(oauth *domain.OAuth) error {
	if oauth.UserID <= 0 {
		return errs.Errorf(errs.EINVALID, "OAuth user ID is required.")
	}
	return nil
}

// ByProvider retrieves the link to a provider's account, along with the linked user.
func (og *oauthGorm) ByProvider(ctx context.Context, provider, providerID string) (*domain.OAuth, error) {
	var oauth domain.OAuth
	err := og.db.WithContext(ctx).
		Preload("User").
		Where("provider = ?", provider).
		Where("provider_id = ?", providerID).
		First(&oauth).Error
	if err != nil {
		return nil, notFound(err, "The account is not linked to any user.")
	}
	return &oauth, nil
}

// Create stores the data from the OAuth object in a new database record.
func (og *oauthGorm) Create(ctx context.Context, oauth *domain.OAuth) error {
	return og.db.WithContext(ctx).Omit("User").Create(oauth).Error
}
