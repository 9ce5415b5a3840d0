package authclient_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifyEmailHandlerExecutes(t *testing.T) {
	session := validSession("user-1")

	gateway := new(MockGateway)
	gateway.On("VerifyOTP", mock.Anything, "token-123", authclient.OTPTypeSignup).
		Return(session, nil)

	facade := authclient.NewFacade(gateway, nil).WithLogger(quietLogger{})
	handler := authclient.NewVerifyEmailHandler(facade)

	var response *authclient.VerifyEmailResponse
	err := handler.Execute(context.Background(), authclient.VerifyEmailMessage{
		Token:   "token-123",
		OTPType: authclient.OTPTypeSignup,
		OnResponse: func(resp *authclient.VerifyEmailResponse) {
			response = resp
		},
	})

	require.NoError(t, err)
	require.NotNil(t, response)
	assert.True(t, response.Success)
	assert.Equal(t, session, response.Session)
}

func TestVerifyEmailHandlerRejectsUnknownOTPType(t *testing.T) {
	gateway := new(MockGateway)
	facade := authclient.NewFacade(gateway, nil).WithLogger(quietLogger{})
	handler := authclient.NewVerifyEmailHandler(facade)

	err := handler.Execute(context.Background(), authclient.VerifyEmailMessage{
		Token:   "token-123",
		OTPType: "magic",
	})

	require.Error(t, err)
	gateway.AssertNotCalled(t, "VerifyOTP", mock.Anything, mock.Anything, mock.Anything)
}

func TestResendVerificationHandlerExecutes(t *testing.T) {
	gateway := new(MockGateway)
	gateway.On("Resend", mock.Anything, authclient.OTPTypeSignup, "user@example.com").Return(nil)

	facade := authclient.NewFacade(gateway, nil).WithLogger(quietLogger{})
	handler := authclient.NewResendVerificationHandler(facade)

	err := handler.Execute(context.Background(), authclient.ResendVerificationMessage{
		Email:   "user@example.com",
		OTPType: authclient.OTPTypeSignup,
	})

	require.NoError(t, err)
	gateway.AssertCalled(t, "Resend", mock.Anything, authclient.OTPTypeSignup, "user@example.com")
}
