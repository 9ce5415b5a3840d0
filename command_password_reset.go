package authclient

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type PasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *PasswordResetResponse)
}

func (p PasswordResetMessage) Type() string { return "auth.password_reset" }

func (p PasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Email,
			validation.Required,
			is.Email,
		),
	)
}

type PasswordResetResponse struct {
	Email   string
	Success bool
}

// PasswordResetHandler asks the hosted gateway to start the recovery flow.
// The gateway owns token issuance and email delivery.
type PasswordResetHandler struct {
	facade *Facade
}

func NewPasswordResetHandler(facade *Facade) *PasswordResetHandler {
	return &PasswordResetHandler{facade: facade}
}

func (h *PasswordResetHandler) Execute(ctx context.Context, event PasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *PasswordResetHandler) execute(ctx context.Context, event PasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.facade.ResetPasswordForEmail(ctx, event.Email); err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&PasswordResetResponse{
			Email:   event.Email,
			Success: true,
		})
	}

	return nil
}
