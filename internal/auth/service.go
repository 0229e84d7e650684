// Package auth implements passwordless sign-in: emailed one-time codes,
// JWT access tokens and Redis-backed refresh sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/internal/profiles"
	pkgauth "github.com/lastcall-app/lastcall-backend/pkg/auth"
	"github.com/lastcall-app/lastcall-backend/pkg/auth/session"
	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/mailer"
	"github.com/lastcall-app/lastcall-backend/pkg/security"
)

const invalidCodeMessage = "invalid or expired code"

type otpStore interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	InvalidateOpenTx(tx *gorm.DB, email string, at time.Time) error
	CreateTx(tx *gorm.DB, code *models.OTPCode) error
	LatestActiveTx(tx *gorm.DB, email string, now time.Time) (*models.OTPCode, error)
	IncrementAttemptsTx(tx *gorm.DB, id uuid.UUID) error
	ConsumeTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type profileStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	FindOrCreateByEmailTx(tx *gorm.DB, email string, now time.Time) (*models.Profile, bool, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type mxResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// LoginHook runs after a successful verification so guest state can follow
// the user. Failures are logged, never returned.
type LoginHook func(ctx context.Context, guestSessionID string, userID uuid.UUID) error

type Service struct {
	otps     otpStore
	profiles profileStore
	sessions sessionManager
	sender   mailer.Sender
	renderer *mailer.Renderer
	resolver mxResolver
	validate *validator.Validate
	jwtCfg   config.JWTConfig
	otpCfg   config.OTPConfig
	argon    security.ArgonParams
	hooks    []LoginHook
	clock    clock.Clock
	logg     *logger.Logger
}

type ServiceParams struct {
	OTPs     otpStore
	Profiles profileStore
	Sessions sessionManager
	Sender   mailer.Sender
	Renderer *mailer.Renderer
	Resolver mxResolver
	JWT      config.JWTConfig
	OTP      config.OTPConfig
	Hooks    []LoginHook
	Clock    clock.Clock
	Logger   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.OTPs == nil:
		return nil, fmt.Errorf("otp repository is required")
	case params.Profiles == nil:
		return nil, fmt.Errorf("profile repository is required")
	case params.Sessions == nil:
		return nil, fmt.Errorf("session manager is required")
	case params.Sender == nil:
		return nil, fmt.Errorf("mail sender is required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case params.OTP.CodeLength <= 0 || params.OTP.TTL <= 0 || params.OTP.MaxAttempts <= 0:
		return nil, fmt.Errorf("otp code length, ttl and attempts must be positive")
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = mailer.MustRenderer()
	}
	resolver := params.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		otps:     params.OTPs,
		profiles: params.Profiles,
		sessions: params.Sessions,
		sender:   params.Sender,
		renderer: renderer,
		resolver: resolver,
		validate: validator.New(),
		jwtCfg:   params.JWT,
		otpCfg:   params.OTP,
		argon:    security.ParamsFromConfig(params.OTP),
		hooks:    params.Hooks,
		clock:    clk,
		logg:     params.Logger,
	}, nil
}

func (s *Service) now() time.Time { return s.clock.Now().UTC() }

// SendOTP emails a fresh code and invalidates any earlier one.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	email = profiles.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required").
			WithDetails(map[string]string{"email": "invalid"})
	}
	code, err := security.NumericCode(s.otpCfg.CodeLength)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	hash, err := security.Hash(code, s.argon)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash code")
	}
	now := s.now()
	err = s.otps.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.otps.InvalidateOpenTx(tx, email, now); err != nil {
			return err
		}
		return s.otps.CreateTx(tx, &models.OTPCode{Email: email, CodeHash: hash, ExpiresAt: now.Add(s.otpCfg.TTL), CreatedAt: now})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store code")
	}

	msg, err := s.renderer.Render(mailer.TemplateOTP, email, "Your LastCall sign-in code", mailer.OTPData{
		Code:             code,
		ExpiresInMinutes: int(s.otpCfg.TTL / time.Minute),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render code email")
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send code email")
	}
	s.logg.Info(s.logg.WithField(ctx, "email_domain", domainOf(email)), "otp sent")
	return nil
}

// VerifyOTP checks the newest code for email. A wrong guess counts against
// the attempt limit; a match consumes the code and signs the user in.
func (s *Service) VerifyOTP(ctx context.Context, req VerifyOTPRequest, guestSessionID string) (*LoginResponse, error) {
	email := profiles.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	if email == "" || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and code are required")
	}

	var (
		profile  *models.Profile
		created  bool
		rejected *pkgerrors.Error
	)
	now := s.now()
	err := s.otps.WithTx(ctx, func(tx *gorm.DB) error {
		otp, err := s.otps.LatestActiveTx(tx, email, now)
		if err != nil {
			return err
		}
		if otp == nil {
			rejected = pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
			return nil
		}
		if otp.Attempts >= s.otpCfg.MaxAttempts {
			rejected = pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, request a new code")
			return s.otps.ConsumeTx(tx, otp.ID, now)
		}
		ok, err := security.Verify(code, otp.CodeHash)
		if err != nil {
			return err
		}
		if !ok {
			rejected = pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
			return s.otps.IncrementAttemptsTx(tx, otp.ID)
		}
		if err := s.otps.ConsumeTx(tx, otp.ID, now); err != nil {
			return err
		}
		profile, created, err = s.profiles.FindOrCreateByEmailTx(tx, email, now)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify code")
	}
	if rejected != nil {
		return nil, rejected
	}

	resp, err := s.issue(ctx, *profile, "")
	if err != nil {
		return nil, err
	}
	resp.NewAccount = created

	ctx = s.logg.WithUserID(ctx, profile.UserID.String())
	s.logg.Info(ctx, "user signed in")
	if guestSessionID != "" {
		for _, hook := range s.hooks {
			if err := hook(ctx, guestSessionID, profile.UserID); err != nil {
				s.logg.Error(ctx, "login hook failed", err)
			}
		}
	}
	return resp, nil
}

// Refresh rotates the refresh session bound to the presented access token
// and mints a new access token from the current profile.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*LoginResponse, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil || claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	profile, err := s.profiles.FindByID(ctx, claims.UserID)
	if err != nil {
		_ = s.sessions.Revoke(ctx, newAccessID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	resp, err := s.mint(*profile, newAccessID)
	if err != nil {
		return nil, err
	}
	resp.RefreshToken = newRefresh
	return resp, nil
}

// Logout revokes the refresh session of the presented access token. Expired
// tokens are accepted.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil || claims.ID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// ValidateEmail checks syntax, then that the domain accepts mail.
func (s *Service) ValidateEmail(ctx context.Context, email string) EmailValidation {
	email = profiles.NormalizeEmail(email)
	out := EmailValidation{Email: email}
	if err := s.validate.Var(email, "required,email"); err != nil {
		out.Reason = "invalid_syntax"
		return out
	}
	records, err := s.resolver.LookupMX(ctx, domainOf(email))
	if err != nil || len(records) == 0 {
		out.Reason = "no_mx_records"
		return out
	}
	out.Valid = true
	return out
}

// CleanupOTPs deletes codes that expired more than the retention ago.
func (s *Service) CleanupOTPs(ctx context.Context) (int64, error) {
	return s.otps.DeleteExpired(ctx, s.now().Add(-s.otpCfg.Retention))
}

func (s *Service) issue(ctx context.Context, profile models.Profile, accessID string) (*LoginResponse, error) {
	if accessID == "" {
		accessID = session.NewAccessID()
	}
	resp, err := s.mint(profile, accessID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	resp.RefreshToken = refresh
	return resp, nil
}

func (s *Service) mint(profile models.Profile, accessID string) (*LoginResponse, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID:      profile.UserID,
		Email:       profile.Email,
		Role:        profile.Role,
		VenueID:     profile.VenueID,
		AgeVerified: profile.AgeVerifiedAt != nil,
		JTI:         accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &LoginResponse{
		AccessToken: token,
		ExpiresIn:   s.jwtCfg.ExpirationMinutes * 60,
		User:        profiles.FromModel(profile),
	}, nil
}

func domainOf(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return ""
}
