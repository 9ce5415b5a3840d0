package authclient

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// Credentials is the sign-in/sign-up payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&c.Password,
			validation.Required,
		),
	)
}

// Facade is the thin adapter over the remote gateway. Every reply is
// normalized into the package error taxonomy, and a business id found in
// user metadata is propagated into the BusinessContext after sign in.
type Facade struct {
	gateway  Gateway
	business *BusinessContext
	logger   Logger
}

// NewFacade wraps a gateway. The BusinessContext is optional; without one,
// metadata propagation is skipped.
func NewFacade(gateway Gateway, business *BusinessContext) *Facade {
	return &Facade{
		gateway:  gateway,
		business: business,
		logger:   defLogger{},
	}
}

func (f *Facade) WithLogger(logger Logger) *Facade {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// Gateway exposes the wrapped gateway for event subscription.
func (f *Facade) Gateway() Gateway {
	return f.gateway
}

// SignIn authenticates with the hosted service and propagates any business id
// carried in the user's metadata. Validation failures never reach the network.
func (f *Facade) SignIn(ctx context.Context, email, password string) (*GatewaySession, *goerrors.Error) {
	creds := Credentials{Email: email, Password: password}
	if err := creds.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credentials payload").
			WithCode(goerrors.CodeBadRequest)
	}

	session, err := f.gateway.SignIn(ctx, email, password)
	if err != nil {
		f.logger.Error("SignIn gateway error: %v", err)
		return nil, MapGatewayError(err)
	}

	f.propagateBusinessID(ctx, session)
	return session, nil
}

// SignUp registers a new account. Symmetric to SignIn.
func (f *Facade) SignUp(ctx context.Context, email, password string) (*GatewaySession, *goerrors.Error) {
	creds := Credentials{Email: email, Password: password}
	if err := creds.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credentials payload").
			WithCode(goerrors.CodeBadRequest)
	}

	session, err := f.gateway.SignUp(ctx, email, password)
	if err != nil {
		f.logger.Error("SignUp gateway error: %v", err)
		return nil, MapGatewayError(err)
	}

	f.propagateBusinessID(ctx, session)
	return session, nil
}

// SignOut tells the hosted service to revoke the session.
func (f *Facade) SignOut(ctx context.Context) *goerrors.Error {
	if err := f.gateway.SignOut(ctx); err != nil {
		f.logger.Warn("SignOut gateway error: %v", err)
		return MapGatewayError(err)
	}
	return nil
}

// GetSession fetches the current session. (nil, nil) means no session.
func (f *Facade) GetSession(ctx context.Context) (*GatewaySession, *goerrors.Error) {
	session, err := f.gateway.GetSession(ctx)
	if err != nil {
		return nil, MapGatewayError(err)
	}
	return session, nil
}

// GetUser fetches the current user record.
func (f *Facade) GetUser(ctx context.Context) (*GatewayUser, *goerrors.Error) {
	user, err := f.gateway.GetUser(ctx)
	if err != nil {
		return nil, MapGatewayError(err)
	}
	return user, nil
}

// ResetPasswordForEmail starts the recovery flow for an account.
func (f *Facade) ResetPasswordForEmail(ctx context.Context, email string) *goerrors.Error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := f.gateway.ResetPasswordForEmail(ctx, email); err != nil {
		f.logger.Error("ResetPasswordForEmail gateway error: %v", err)
		return MapGatewayError(err)
	}
	return nil
}

// UpdateUser applies a partial update (password change, metadata) to the
// current user.
func (f *Facade) UpdateUser(ctx context.Context, update UserUpdate) (*GatewayUser, *goerrors.Error) {
	user, err := f.gateway.UpdateUser(ctx, update)
	if err != nil {
		f.logger.Error("UpdateUser gateway error: %v", err)
		return nil, MapGatewayError(err)
	}
	return user, nil
}

// VerifyOTP redeems a signup or recovery token for a session.
func (f *Facade) VerifyOTP(ctx context.Context, token string, otpType OTPType) (*GatewaySession, *goerrors.Error) {
	session, err := f.gateway.VerifyOTP(ctx, token, otpType)
	if err != nil {
		f.logger.Error("VerifyOTP gateway error: %v", err)
		return nil, MapGatewayError(err)
	}

	f.propagateBusinessID(ctx, session)
	return session, nil
}

// Resend re-issues a signup or recovery token to an email address.
func (f *Facade) Resend(ctx context.Context, otpType OTPType, email string) *goerrors.Error {
	if err := f.gateway.Resend(ctx, otpType, email); err != nil {
		return MapGatewayError(err)
	}
	return nil
}

// propagateBusinessID copies a metadata-carried business id into the context
// cache so the first guarded navigation after sign in does not need a
// resolver round trip. Failures are non fatal.
func (f *Facade) propagateBusinessID(ctx context.Context, session *GatewaySession) {
	if f.business == nil || session == nil || session.User == nil {
		return
	}

	identity := IdentityFromGatewayUser(session.User)
	if identity == nil || identity.BusinessID == "" {
		return
	}

	f.business.Bind(identity.ID)
	if err := f.business.SetBusinessContext(ctx, identity.BusinessID); err != nil {
		f.logger.Warn("business id propagation failed for %s: %v", identity.ID, err)
	}
}
