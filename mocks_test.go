package authclient_test

import (
	"context"

	"github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/mock"
)

// MockGateway implements authclient.Gateway. It also owns the subscriber
// list so tests can push change events the way a real provider would.
type MockGateway struct {
	mock.Mock

	subscribers []func(authclient.AuthEvent)
}

func (m *MockGateway) SignIn(ctx context.Context, email, password string) (*authclient.GatewaySession, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*authclient.GatewaySession)
	return session, args.Error(1)
}

func (m *MockGateway) SignUp(ctx context.Context, email, password string) (*authclient.GatewaySession, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*authclient.GatewaySession)
	return session, args.Error(1)
}

func (m *MockGateway) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGateway) GetSession(ctx context.Context) (*authclient.GatewaySession, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*authclient.GatewaySession)
	return session, args.Error(1)
}

func (m *MockGateway) GetUser(ctx context.Context) (*authclient.GatewayUser, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*authclient.GatewayUser)
	return user, args.Error(1)
}

func (m *MockGateway) ResetPasswordForEmail(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockGateway) UpdateUser(ctx context.Context, update authclient.UserUpdate) (*authclient.GatewayUser, error) {
	args := m.Called(ctx, update)
	user, _ := args.Get(0).(*authclient.GatewayUser)
	return user, args.Error(1)
}

func (m *MockGateway) VerifyOTP(ctx context.Context, token string, otpType authclient.OTPType) (*authclient.GatewaySession, error) {
	args := m.Called(ctx, token, otpType)
	session, _ := args.Get(0).(*authclient.GatewaySession)
	return session, args.Error(1)
}

func (m *MockGateway) Resend(ctx context.Context, otpType authclient.OTPType, email string) error {
	args := m.Called(ctx, otpType, email)
	return args.Error(0)
}

func (m *MockGateway) OnAuthStateChange(fn func(authclient.AuthEvent)) authclient.Subscription {
	m.subscribers = append(m.subscribers, fn)
	return stubSubscription{}
}

// Emit pushes a change event to every subscriber, like a provider stream.
func (m *MockGateway) Emit(event authclient.AuthEvent) {
	for _, fn := range m.subscribers {
		fn(event)
	}
}

type stubSubscription struct{}

func (stubSubscription) Unsubscribe() {}

// MockResolver implements authclient.BusinessResolver.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ActiveBusiness(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockResolver) SetActiveBusiness(ctx context.Context, userID, businessID string) error {
	args := m.Called(ctx, userID, businessID)
	return args.Error(0)
}

func (m *MockResolver) ClearActiveBusiness(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockResolver) ListMemberships(ctx context.Context, userID string) ([]authclient.Membership, error) {
	args := m.Called(ctx, userID)
	memberships, _ := args.Get(0).([]authclient.Membership)
	return memberships, args.Error(1)
}

func (m *MockResolver) ValidateAccess(ctx context.Context, userID, businessID string) (bool, error) {
	args := m.Called(ctx, userID, businessID)
	return args.Bool(0), args.Error(1)
}

// MockNavigator records navigation targets.
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Navigate(url string) error {
	args := m.Called(url)
	return args.Error(0)
}

// MockIdleTimer tracks lifecycle calls from the machine.
type MockIdleTimer struct {
	mock.Mock
}

func (m *MockIdleTimer) Initialize() {
	m.Called()
}

func (m *MockIdleTimer) Reset() {
	m.Called()
}

func (m *MockIdleTimer) Stop() {
	m.Called()
}

// newNullResolver accepts every read and write, for tests that only exercise
// auth transitions.
func newNullResolver() *MockResolver {
	resolver := new(MockResolver)
	resolver.On("ActiveBusiness", mock.Anything, mock.Anything).Return("", nil).Maybe()
	resolver.On("SetActiveBusiness", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	resolver.On("ClearActiveBusiness", mock.Anything, mock.Anything).Return(nil).Maybe()
	resolver.On("ListMemberships", mock.Anything, mock.Anything).Return([]authclient.Membership(nil), nil).Maybe()
	resolver.On("ValidateAccess", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Maybe()
	return resolver
}

// quietLogger silences machine output during tests.
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}
