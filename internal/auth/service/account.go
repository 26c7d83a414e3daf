package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/accounts/internal/auth/blob"
	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/notify"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/errutil"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// PasswordHasher is satisfied by cryptox.Argon2Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// AccountService runs the account lifecycle: registration, email
// verification, login and the password flows. Every state change is a single
// conditional update in the store.
type AccountService struct {
	Store    store.Store
	Hasher   PasswordHasher
	Tokens   *Tokens
	OTP      *OTPGenerator
	Notifier notify.Notifier
	Blobs    blob.Store // optional; nil rejects profile images
	Metrics  *Metrics   // optional
	Now      func() time.Time

	// ExposeSecrets returns codes and reset tokens in results. Only for
	// non-production environments.
	ExposeSecrets bool

	// ResetBaseURL prefixes /<userID>/<token> in reset links.
	ResetBaseURL string

	// RequireOTPForDirectReset gates ResetPasswordDirect on the code issued
	// by CheckEmailAndIssueOtp.
	RequireOTPForDirectReset bool
}

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string

	// ProfileImage is read up to blob.MaxImageSize; nil means no image.
	ProfileImage io.Reader
}

type RegisterResult struct {
	User         domain.UserSummary
	OTP          string // empty unless ExposeSecrets
	OTPExpiresAt time.Time
}

// OTPResult describes a freshly issued code.
type OTPResult struct {
	OTP       string // empty unless ExposeSecrets
	ExpiresAt time.Time
}

type LoginResult struct {
	User      domain.UserSummary
	Token     string
	ExpiresAt time.Time
}

type ResetRequest struct {
	UserID    string
	Token     string // empty unless ExposeSecrets
	Link      string // empty unless ExposeSecrets
	ExpiresAt time.Time
}

type DirectResetInput struct {
	Email           string
	OTP             string
	Password        string
	ConfirmPassword string
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates an unverified account and sends its verification code.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (res RegisterResult, err error) {
	defer s.Metrics.observe("register", time.Now(), &err)

	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return RegisterResult{}, fmt.Errorf("%w: name, email, password and confirm_password are required", ErrValidationFailed)
	}
	if in.Password != in.ConfirmPassword {
		return RegisterResult{}, fmt.Errorf("%w: password and confirm_password do not match", ErrValidationFailed)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return RegisterResult{}, oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	code, err := s.OTP.Generate()
	if err != nil {
		return RegisterResult{}, oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	expiresAt := ExpiryFrom(s.now(), s.OTP.RegistrationWindow)

	var imageRef *string
	if in.ProfileImage != nil {
		ref, err := s.storeImage(ctx, in.ProfileImage)
		if err != nil {
			return RegisterResult{}, err
		}
		imageRef = &ref
	}

	user := domain.User{
		ID:              idx.New().String(),
		Name:            name,
		Email:           email,
		PasswordHash:    hash,
		ProfileImageRef: imageRef,
		OTP:             &code,
		OTPExpiresAt:    &expiresAt,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Users().GetUserByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, store.ErrNotFound) {
			return storeFailure(err, "lookup user", email)
		}

		// The unique index still catches a registration that commits
		// between the lookup and the insert.
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return storeFailure(err, "create user", email)
		}
		return nil
	})
	if err != nil {
		s.discardImage(ctx, imageRef)
		return RegisterResult{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID)
	s.sendOTP(ctx, user, code, notify.PurposeVerifyEmail, expiresAt)

	return RegisterResult{
		User:         user.Summary(),
		OTP:          s.reveal(code),
		OTPExpiresAt: expiresAt,
	}, nil
}

// VerifyEmail marks the account verified when code is the live OTP. The
// code is consumed by the same update.
func (s *AccountService) VerifyEmail(ctx context.Context, email, code string) (summary domain.UserSummary, err error) {
	defer s.Metrics.observe("verify_email", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return domain.UserSummary{}, fmt.Errorf("%w: email and otp are required", ErrValidationFailed)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return domain.UserSummary{}, err
	}
	now := s.now()
	if user.IsVerified || !cryptox.ValidOTP(code) || !user.HasLiveOTP(now) {
		return domain.UserSummary{}, ErrOtpInvalidOrExpired
	}

	ok, err := s.Store.Users().ConsumeVerificationOTP(ctx, email, code, now)
	if err != nil {
		return domain.UserSummary{}, storeFailure(err, "consume verification otp", email)
	}
	if !ok {
		return domain.UserSummary{}, ErrOtpInvalidOrExpired
	}

	user.IsVerified = true
	return user.Summary(), nil
}

// ResendOtp replaces the verification code of an unverified account.
func (s *AccountService) ResendOtp(ctx context.Context, email string) (res OTPResult, err error) {
	defer s.Metrics.observe("resend_otp", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if email == "" {
		return OTPResult{}, fmt.Errorf("%w: email is required", ErrValidationFailed)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return OTPResult{}, err
	}
	if user.IsVerified {
		return OTPResult{}, ErrAlreadyVerified
	}

	code, err := s.OTP.Generate()
	if err != nil {
		return OTPResult{}, oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	expiresAt := ExpiryFrom(s.now(), s.OTP.TransactionalWindow)

	// The verified check is repeated in the update so a concurrent
	// verification can't be undone by a late resend.
	ok, err := s.Store.Users().SetOTPIfUnverified(ctx, email, code, expiresAt)
	if err != nil {
		return OTPResult{}, storeFailure(err, "set otp", email)
	}
	if !ok {
		return OTPResult{}, ErrAlreadyVerified
	}

	s.sendOTP(ctx, user, code, notify.PurposeResendOTP, expiresAt)
	return OTPResult{OTP: s.reveal(code), ExpiresAt: expiresAt}, nil
}

// Login checks credentials and issues a session token. An unverified
// account is refused before the password is looked at.
func (s *AccountService) Login(ctx context.Context, email, password string) (res LoginResult, err error) {
	defer s.Metrics.observe("login", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidationFailed)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !user.IsVerified {
		return LoginResult{}, ErrEmailNotVerified
	}

	if err := s.checkPassword(password, user.PasswordHash); err != nil {
		return LoginResult{}, err
	}

	token, expiresAt, err := s.Tokens.IssueSession(user.ID)
	if err != nil {
		return LoginResult{}, oops.Code("TOKEN_SIGN_FAILED").With("user_id", user.ID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("user logged in", "user_id", user.ID)
	return LoginResult{User: user.Summary(), Token: token, ExpiresAt: expiresAt}, nil
}

// Logout is stateless: tokens stay valid until they expire and the caller
// drops its copy.
func (s *AccountService) Logout(ctx context.Context) {
	var err error
	s.Metrics.observe("logout", time.Now(), &err)
	if user, ok := UserFromContext(ctx); ok {
		slogx.FromContext(ctx).Info("user logged out", "user_id", user.ID)
	}
}

// RequestPasswordReset issues a reset token and sends the reset link.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (res ResetRequest, err error) {
	defer s.Metrics.observe("request_password_reset", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if email == "" {
		return ResetRequest{}, fmt.Errorf("%w: email is required", ErrValidationFailed)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return ResetRequest{}, err
	}

	token, expiresAt, err := s.Tokens.IssueReset(user.ID)
	if err != nil {
		return ResetRequest{}, oops.Code("TOKEN_SIGN_FAILED").With("user_id", user.ID).Wrap(err)
	}
	link := strings.TrimRight(s.ResetBaseURL, "/") + "/" + user.ID + "/" + token

	if err := s.Notifier.SendPasswordReset(ctx, notify.ResetMessage{
		To:        user.Email,
		Name:      user.Name,
		Link:      link,
		ExpiresAt: expiresAt,
	}); err != nil {
		errutil.LogError(slogx.FromContext(ctx), "reset link delivery failed", err, "user_id", user.ID)
	}

	return ResetRequest{
		UserID:    user.ID,
		Token:     s.reveal(token),
		Link:      s.reveal(link),
		ExpiresAt: expiresAt,
	}, nil
}

// ResetPasswordWithToken sets a new password for userID using a reset token
// that was minted for that same user.
func (s *AccountService) ResetPasswordWithToken(ctx context.Context, userID, token, password, confirmPassword string) (err error) {
	defer s.Metrics.observe("reset_password_token", time.Now(), &err)

	subject, err := s.Tokens.Verify(token, jwtx.PurposePasswordReset)
	if err != nil {
		return err
	}
	if subject != userID {
		return fmt.Errorf("%w: token was issued for another user", ErrTokenInvalid)
	}

	if err := validateNewPassword(password, confirmPassword); err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return oops.Code("ACCOUNT_STORE_FAILED").With("operation", "update password").With("user_id", userID).Wrap(err)
	}

	slogx.FromContext(ctx).Info("password reset with token", "user_id", userID)
	return nil
}

// ResetPasswordDirect sets a new password for an email address. Unless
// RequireOTPForDirectReset is off, the code from CheckEmailAndIssueOtp must
// accompany the request and is consumed by the same update.
func (s *AccountService) ResetPasswordDirect(ctx context.Context, in DirectResetInput) (err error) {
	defer s.Metrics.observe("reset_password_direct", time.Now(), &err)

	email := domain.NormalizeEmail(in.Email)
	code := strings.TrimSpace(in.OTP)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidationFailed)
	}
	if err := validateNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return err
	}
	if s.RequireOTPForDirectReset && code == "" {
		return fmt.Errorf("%w: otp is required", ErrValidationFailed)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	now := s.now()
	if s.RequireOTPForDirectReset && (!cryptox.ValidOTP(code) || !user.HasLiveOTP(now) || user.PendingPasswordHash != nil) {
		return ErrOtpInvalidOrExpired
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	if !s.RequireOTPForDirectReset {
		if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return storeFailure(err, "update password", email)
		}
		slogx.FromContext(ctx).Warn("password reset without otp", "user_id", user.ID)
		return nil
	}

	ok, err := s.Store.Users().ResetPasswordWithOTP(ctx, email, code, now, hash)
	if err != nil {
		return storeFailure(err, "reset password with otp", email)
	}
	if !ok {
		return ErrOtpInvalidOrExpired
	}

	slogx.FromContext(ctx).Info("password reset with otp", "user_id", user.ID)
	return nil
}

// ChangePasswordByEmail replaces the password after checking the old one.
func (s *AccountService) ChangePasswordByEmail(ctx context.Context, email, oldPassword, newPassword string) (err error) {
	defer s.Metrics.observe("change_password_email", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if email == "" || oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: email, oldPassword and newPassword are required", ErrValidationFailed)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.checkPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return storeFailure(err, "update password", email)
	}

	slogx.FromContext(ctx).Info("password changed", "user_id", user.ID)
	return nil
}

// RequestChangePassword stages a new password for the signed-in user and
// sends the code that confirms it. A newer request replaces an older one.
func (s *AccountService) RequestChangePassword(ctx context.Context, user domain.User, password, confirmPassword string) (res OTPResult, err error) {
	defer s.Metrics.observe("request_change_password", time.Now(), &err)

	if err := validateNewPassword(password, confirmPassword); err != nil {
		return OTPResult{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return OTPResult{}, oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	code, err := s.OTP.Generate()
	if err != nil {
		return OTPResult{}, oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	expiresAt := ExpiryFrom(s.now(), s.OTP.TransactionalWindow)

	ok, err := s.Store.Users().StagePasswordChange(ctx, user.ID, hash, code, expiresAt)
	if err != nil {
		return OTPResult{}, storeFailure(err, "stage password change", user.Email)
	}
	if !ok {
		return OTPResult{}, ErrNotFound
	}

	s.sendOTP(ctx, user, code, notify.PurposeChangePassword, expiresAt)
	return OTPResult{OTP: s.reveal(code), ExpiresAt: expiresAt}, nil
}

// ConfirmChangePassword promotes the staged password when code is live.
func (s *AccountService) ConfirmChangePassword(ctx context.Context, user domain.User, code string) (err error) {
	defer s.Metrics.observe("confirm_change_password", time.Now(), &err)

	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: otp is required", ErrValidationFailed)
	}

	if !cryptox.ValidOTP(code) {
		return ErrOtpInvalidOrExpired
	}

	ok, err := s.Store.Users().ConfirmPasswordChange(ctx, user.ID, code, s.now())
	if err != nil {
		return storeFailure(err, "confirm password change", user.Email)
	}
	if !ok {
		return ErrOtpInvalidOrExpired
	}

	slogx.FromContext(ctx).Info("password change confirmed", "user_id", user.ID)
	return nil
}

// CheckEmailAndIssueOtp sends a code to a known address regardless of its
// verification state. It opens the direct reset path.
func (s *AccountService) CheckEmailAndIssueOtp(ctx context.Context, email string) (res OTPResult, err error) {
	defer s.Metrics.observe("check_email", time.Now(), &err)

	email = domain.NormalizeEmail(email)
	if email == "" {
		return OTPResult{}, fmt.Errorf("%w: email is required", ErrValidationFailed)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return OTPResult{}, err
	}

	code, err := s.OTP.Generate()
	if err != nil {
		return OTPResult{}, oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	expiresAt := ExpiryFrom(s.now(), s.OTP.TransactionalWindow)

	ok, err := s.Store.Users().SetOTP(ctx, email, code, expiresAt)
	if err != nil {
		return OTPResult{}, storeFailure(err, "set otp", email)
	}
	if !ok {
		return OTPResult{}, ErrNotFound
	}

	s.sendOTP(ctx, user, code, notify.PurposeResetPassword, expiresAt)
	return OTPResult{OTP: s.reveal(code), ExpiresAt: expiresAt}, nil
}

// CurrentUser renders the user resolved by the session gate.
func (s *AccountService) CurrentUser(user domain.User) domain.UserSummary {
	return user.Summary()
}

func (s *AccountService) userByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, storeFailure(err, "lookup user", email)
	}
	return user, nil
}

func (s *AccountService) checkPassword(password, hash string) error {
	ok, err := s.Hasher.Verify(password, hash)
	if err != nil {
		return oops.Code("PASSWORD_VERIFY_FAILED").Wrap(err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *AccountService) storeImage(ctx context.Context, body io.Reader) (string, error) {
	if s.Blobs == nil {
		return "", fmt.Errorf("%w: profile images are not accepted", ErrValidationFailed)
	}
	ref, err := s.Blobs.Put(ctx, body)
	switch {
	case errors.Is(err, blob.ErrUnsupportedType):
		return "", fmt.Errorf("%w: only jpeg, png and webp images are allowed", ErrValidationFailed)
	case errors.Is(err, blob.ErrTooLarge):
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrValidationFailed, blob.MaxImageSize)
	case err != nil:
		return "", oops.Code("BLOB_STORE_FAILED").Wrap(err)
	}
	return ref, nil
}

// discardImage removes an image stored for a registration that did not
// commit. A failed delete only leaves an unreferenced blob behind.
func (s *AccountService) discardImage(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if err := s.Blobs.Delete(context.WithoutCancel(ctx), *ref); err != nil {
		errutil.LogError(slogx.FromContext(ctx), "orphaned profile image", err, "ref", *ref)
	}
}

// sendOTP hands a code to the notifier. Delivery failures are logged, not
// returned: the account change has already happened and the user can ask
// for a new code.
func (s *AccountService) sendOTP(ctx context.Context, user domain.User, code string, purpose notify.Purpose, expiresAt time.Time) {
	s.Metrics.otpIssued(string(purpose))
	err := s.Notifier.SendOTP(ctx, notify.OTPMessage{
		To:        user.Email,
		Name:      user.Name,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		errutil.LogError(slogx.FromContext(ctx), "otp delivery failed", err, "user_id", user.ID, "purpose", string(purpose))
	}
}

func (s *AccountService) reveal(secret string) string {
	if s.ExposeSecrets {
		return secret
	}
	return ""
}

func validateNewPassword(password, confirmPassword string) error {
	if password == "" || confirmPassword == "" {
		return fmt.Errorf("%w: password and confirm_password are required", ErrValidationFailed)
	}
	if password != confirmPassword {
		return fmt.Errorf("%w: password and confirm_password do not match", ErrValidationFailed)
	}
	return nil
}

func storeFailure(err error, operation, email string) error {
	return oops.Code("ACCOUNT_STORE_FAILED").
		With("operation", operation).
		With("email", email).
		Wrap(err)
}
