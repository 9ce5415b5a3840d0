package authclient

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type VerifyEmailMessage struct {
	Token      string  `json:"token"`
	OTPType    OTPType `json:"otp_type"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (m VerifyEmailMessage) Type() string { return "auth.verify_email" }

func (m VerifyEmailMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(
			&m.Token,
			validation.Required,
		),
		validation.Field(
			&m.OTPType,
			validation.Required,
			validation.In(OTPTypeSignup, OTPTypeRecovery),
		),
	)
}

type VerifyEmailResponse struct {
	Session *GatewaySession
	Success bool
}

// VerifyEmailHandler redeems a signup or recovery token through the gateway.
type VerifyEmailHandler struct {
	facade *Facade
}

func NewVerifyEmailHandler(facade *Facade) *VerifyEmailHandler {
	return &VerifyEmailHandler{facade: facade}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid verification payload").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	session, err := h.facade.VerifyOTP(ctx, event.Token, event.OTPType)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{
			Session: session,
			Success: true,
		})
	}

	return nil
}

// ResendVerificationMessage re-issues a pending token to an email address.
type ResendVerificationMessage struct {
	Email   string  `json:"email"`
	OTPType OTPType `json:"otp_type"`
}

func (m ResendVerificationMessage) Type() string { return "auth.verify_email.resend" }

type ResendVerificationHandler struct {
	facade *Facade
}

func NewResendVerificationHandler(facade *Facade) *ResendVerificationHandler {
	return &ResendVerificationHandler{facade: facade}
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		if err := h.facade.Resend(ctx, event.OTPType, event.Email); err != nil {
			return err
		}
		return nil
	}
}
