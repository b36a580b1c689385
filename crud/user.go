package crud

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"miniTweet/auth"
	"miniTweet/domain"
	"miniTweet/errs"
)

// UserService manages Users. It also contains the part of the authentication system
// that handles database interactions and token creation / hashing. It's basically
// the "backend" of the auth system, with http/auth.go dealing with requests, middleware
// and cookies being the "frontend". It implements the domain.UserService interface.
type UserService struct {
	userValidator
}

// userValidator runs validations on incoming User data.
// On success, it passes the data on to userGorm.
// Otherwise, it returns the error of the validation that has failed.
type userValidator struct {
	hmac       auth.HMAC
	pepper     string
	emailRegex *regexp.Regexp
	userGorm
}

// userGorm runs CRUD operations on the database using incoming User data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type userGorm struct {
	db *gorm.DB
}

// NewUserService returns an instance of UserService.
func NewUserService(db *gorm.DB, pepper, hmacKey string) *UserService {
	return &UserService{
		userValidator{
			hmac:       auth.NewHMAC(hmacKey),
			pepper:     pepper,
			emailRegex: regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,16}$`),
			userGorm: userGorm{
				db: db,
			},
		},
	}
}

// Ensure the UserService struct properly implements the domain.UserService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.UserService = &UserService{}

// credentialsMismatch is returned for unknown emails and wrong passwords alike,
// so that the login form doesn't reveal which accounts exist.
const credentialsMismatch = "These credentials do not match our records."

// Authenticate checks a submitted email address and password for existence and correctness.
func (uv *userValidator) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	// Look for a user database record containing the submitted email address.
	user := domain.User{Email: email}
	if err := runUserValFns(&user, uv.emailNormalize); err != nil {
		return nil, err
	}
	found, err := uv.userGorm.byEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.FieldErrorf("email", credentialsMismatch)
		}
		return nil, err
	}

	// Append the pepper to the submitted password, hash it, and compare the result to the
	// password hash stored in the user's database record. If they match, the submitted password is correct.
	err = bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password+uv.pepper))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrHashTooShort):
			return nil, errs.FieldErrorf("email", credentialsMismatch)
		default:
			return nil, err
		}
	}
	return found, nil
}

// MakeRememberToken is a helper to generate remember tokens of a predetermined byte size.
func (uv *userValidator) MakeRememberToken() (string, error) {
	return auth.RememberToken()
}

// ByEmail normalizes the email address before looking it up in the database.
func (uv *userValidator) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := domain.User{Email: email}
	if err := runUserValFns(&user, uv.emailNormalize); err != nil {
		return nil, err
	}
	found, err := uv.userGorm.byEmail(ctx, user.Email)
	if err != nil {
		return nil, notFound(err, "The user does not exist.")
	}
	return found, nil
}

// ByRemember hashes the remember token and passes the HASHED token on to
// userGorm.ByRemember, which will look it up in the database.
func (uv *userValidator) ByRemember(ctx context.Context, token string) (*domain.User, error) {
	user := domain.User{
		Remember: token,
	}
	if err := runUserValFns(&user, uv.rememberHmac, uv.rememberHashRequired); err != nil {
		return nil, err
	}
	return uv.userGorm.ByRemember(ctx, user.RememberHash)
}

// Create runs validations needed for creating new User database records.
// It will create a remember token if none is provided.
func (uv *userValidator) Create(ctx context.Context, user *domain.User) error {
	err := runUserValFns(user,
		uv.nameNormalize,
		uv.nameRequired,
		uv.nameMaxLength,
		uv.emailNormalize,
		uv.emailRequired,
		uv.emailFormat,
		uv.emailIsAvail(ctx),
		uv.passwordRequired,
		uv.passwordMinLength,
		uv.passwordBcrypt,
		uv.passwordHashRequired,
		uv.rememberSetIfUnset,
		uv.rememberMinBytes,
		uv.rememberHmac,
		uv.rememberHashRequired)
	if err != nil {
		return err
	}
	return uv.userGorm.Create(ctx, user)
}

// Update runs validations needed for updating a User record in the database.
// It will hash a remember token if it is provided (and will not return an error if it's not).
// Users signed up through an oauth provider have no password hash, so none is required here.
func (uv *userValidator) Update(ctx context.Context, user *domain.User) error {
	err := runUserValFns(user,
		uv.idValid,
		uv.nameNormalize,
		uv.nameRequired,
		uv.nameMaxLength,
		uv.emailNormalize,
		uv.emailRequired,
		uv.emailFormat,
		uv.emailIsAvail(ctx),
		uv.passwordMinLength,
		uv.passwordBcrypt,
		uv.rememberMinBytes,
		uv.rememberHmac,
		uv.rememberHashRequired)
	if err != nil {
		return err
	}
	return uv.userGorm.Update(ctx, user)
}

// Delete runs validations needed for deleting a User record.
func (uv *userValidator) Delete(ctx context.Context, id int) error {
	if err := runUserValFns(&domain.User{ID: id}, uv.idValid); err != nil {
		return err
	}
	return uv.userGorm.Delete(ctx, id)
}

// runUserValFns runs any number of functions of type userValFn on the passed in User object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runUserValFns(user *domain.User, fns ...userValFn) error {
	for _, fn := range fns {
		if err := fn(user); err != nil {
			return err
		}
	}
	return nil
}

// A userValFn is any function that takes in a pointer to a domain.User object and returns an error.
type userValFn func(user *domain.User) error

// idValid makes sure that the user's ID is greater than 0.
func (uv *userValidator) idValid(user *domain.User) error {
	if user.ID <= 0 {
		return errs.Errorf(errs.EINVALID, "User ID is invalid.")
	}
	return nil
}

// nameNormalize trims the name's whitespaces.
func (uv *userValidator) nameNormalize(user *domain.User) error {
	user.Name = strings.TrimSpace(user.Name)
	return nil
}

// nameRequired makes sure that the name is not the empty string.
func (uv *userValidator) nameRequired(user *domain.User) error {
	if user.Name == "" {
		return errs.FieldErrorf("name", "The name field is required.")
	}
	return nil
}

// nameMaxLength makes sure that the name fits into its column.
func (uv *userValidator) nameMaxLength(user *domain.User) error {
	if utf8.RuneCountInString(user.Name) > 255 {
		return errs.FieldErrorf("name", "The name may not be greater than 255 characters.")
	}
	return nil
}

// emailFormat makes sure that a provided email address matches a predefined regex pattern.
func (uv *userValidator) emailFormat(user *domain.User) error {
	if !uv.emailRegex.MatchString(user.Email) {
		return errs.FieldErrorf("email", "The email must be a valid email address.")
	}
	return nil
}

// emailIsAvail makes sure that a provided email address is not yet taken.
func (uv *userValidator) emailIsAvail(ctx context.Context) userValFn {
	return func(user *domain.User) error {
		existing, err := uv.userGorm.byEmail(ctx, user.Email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Address is not taken.
			return nil
		}
		if err != nil {
			return err
		}
		if user.ID != existing.ID {
			// Email found, and the passed in user is not the owner of that email.
			return errs.FieldErrorf("email", "The email has already been taken.")
		}
		return nil
	}
}

// emailNormalize converts the email to all lowercase and trims its whitespaces.
func (uv *userValidator) emailNormalize(user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	user.Email = strings.TrimSpace(user.Email)
	return nil
}

// emailRequired makes sure that the email is not the empty string.
func (uv *userValidator) emailRequired(user *domain.User) error {
	if user.Email == "" {
		return errs.FieldErrorf("email", "The email field is required.")
	}
	return nil
}

// passwordBcrypt hashes a user's password with a predefined pepper.
// It bcrypts it, if the Password field is not the empty string.
// It then clears the password on the user object in memory.
func (uv *userValidator) passwordBcrypt(user *domain.User) error {
	if user.Password == "" {
		return nil
	}
	pwBytes := []byte(user.Password + uv.pepper)
	hashedBytes, err := bcrypt.GenerateFromPassword(pwBytes, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashedBytes)
	user.Password = ""
	return nil
}

// passwordHashRequired makes sure that the user's password hash is not the empty string.
func (uv *userValidator) passwordHashRequired(user *domain.User) error {
	if user.NoPasswordNeeded {
		return nil
	}
	if user.PasswordHash == "" {
		return errs.FieldErrorf("password", "The password field is required.")
	}
	return nil
}

// passwordMinLength makes sure that the user's password is at least 8 characters long.
func (uv *userValidator) passwordMinLength(user *domain.User) error {
	if user.Password == "" {
		return nil
	}
	if utf8.RuneCountInString(user.Password) < 8 {
		return errs.FieldErrorf("password", "The password must be at least 8 characters.")
	}
	return nil
}

// passwordRequired makes sure that the user's password is not the empty string.
func (uv *userValidator) passwordRequired(user *domain.User) error {
	if user.NoPasswordNeeded {
		return nil
	}
	if user.Password == "" {
		return errs.FieldErrorf("password", "The password field is required.")
	}
	return nil
}

// rememberHashRequired makes sure the user's remember token hash is not the empty string.
func (uv *userValidator) rememberHashRequired(user *domain.User) error {
	if user.RememberHash == "" {
		return errs.Errorf(errs.EUNAUTHORIZED, "Unauthenticated.")
	}
	return nil
}

// rememberHmac creates the user's remember token hash, if a remember token has been provided.
func (uv *userValidator) rememberHmac(user *domain.User) error {
	if user.Remember == "" {
		return nil
	}
	user.RememberHash = uv.hmac.Hash(user.Remember)
	return nil
}

// rememberMinBytes makes sure that the user's remember token is not too short.
func (uv *userValidator) rememberMinBytes(user *domain.User) error {
	if user.Remember == "" {
		return nil
	}
	n, err := auth.NBytes(user.Remember)
	if err != nil {
		return err
	}
	if n < auth.RememberTokenBytes {
		return errs.Errorf(errs.EINTERNAL, "Remember token must be at least %d bytes.", auth.RememberTokenBytes)
	}
	return nil
}

// rememberSetIfUnset creates the user's remember token if none is provided.
func (uv *userValidator) rememberSetIfUnset(user *domain.User) error {
	if user.Remember != "" {
		return nil
	}
	token, err := uv.MakeRememberToken()
	if err != nil {
		return err
	}
	user.Remember = token
	return nil
}

// ByID retrieves a User database record by ID.
func (ug *userGorm) ByID(ctx context.Context, id int) (*domain.User, error) {
	var user domain.User
	err := ug.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "The user does not exist.")
	}
	return &user, nil
}

// byEmail retrieves a User database record by Email. It returns gorm's errors untouched,
// so that validations can tell a missing record apart from a failing query.
func (ug *userGorm) byEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	db := ug.db.WithContext(ctx).Where("email = ?", email)
	if err := first(db, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ByRemember retrieves a User database record by its hashed remember token.
// The checkUser middleware calls this on every request, trying to identify a user
// by matching a request cookie's remember token to a hashed remember token in the database.
func (ug *userGorm) ByRemember(ctx context.Context, rememberHash string) (*domain.User, error) {
	var user domain.User
	db := ug.db.WithContext(ctx).Where("remember_hash = ?", rememberHash)
	if err := first(db, &user); err != nil {
		return nil, notFound(err, "Unauthenticated.")
	}
	return &user, nil
}

// Create stores the data from the User object in a new database record.
func (ug *userGorm) Create(ctx context.Context, user *domain.User) error {
	return ug.db.WithContext(ctx).Create(user).Error
}

// Update saves changes to an existing user record in the database.
func (ug *userGorm) Update(ctx context.Context, user *domain.User) error {
	return ug.db.WithContext(ctx).Save(user).Error
}

// Delete permanently deletes a user. The database cascades the deletion to the user's
// tweets, the likes on those tweets, the likes the user gave and their oauth links.
func (ug *userGorm) Delete(ctx context.Context, id int) error {
	res := ug.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The user does not exist.")
	}
	return nil
}

// first is a helper for getting the first database record that matches a given query.
func first(db *gorm.DB, dst interface{}) error {
	return db.First(dst).Error
}
