package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	// MinPasswordLength is the shortest password accepted at registration.
	MinPasswordLength = 6

	maxPasswordBytes = 72
)

var passwordRule = "min=" + strconv.Itoa(MinPasswordLength)

// EventRecorder receives auth outcomes for instrumentation.
type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

// Service wraps authentication business rules.
type Service struct {
	credentials CredentialStore
	sessions    SessionStore
	validate    *validator.Validate
	logger      *slog.Logger
	events      EventRecorder
}

// NewService constructs a new Service. logger and events may be nil.
func NewService(credentials CredentialStore, sessions SessionStore, logger *slog.Logger, events EventRecorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		credentials: credentials,
		sessions:    sessions,
		validate:    validator.New(),
		logger:      logger,
		events:      events,
	}
}

type credentialsInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Register creates a user and logs them in.
func (s *Service) Register(ctx context.Context, username, password string) (*Result, error) {
	if err := s.checkInput(username, password); err != nil {
		s.record("register", "invalid")
		return nil, err
	}
	if err := s.validate.Var(password, passwordRule); err != nil {
		s.record("register", "weak_password")
		return nil, ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		s.record("register", "invalid")
		return nil, ErrPasswordTooLong
	}

	user, err := s.credentials.Create(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			s.record("register", "duplicate")
		} else {
			s.record("register", "error")
		}
		return nil, err
	}
	return s.issue(ctx, "register", user)
}

// Login validates credentials and opens a new session. Existing sessions of the
// same user stay valid.
func (s *Service) Login(ctx context.Context, username, password string) (*Result, error) {
	if err := s.checkInput(username, password); err != nil {
		s.record("login", "invalid")
		return nil, err
	}
	user, err := s.credentials.Validate(ctx, username, password)
	if err != nil {
		s.record("login", "error")
		return nil, err
	}
	if user == nil {
		s.record("login", "rejected")
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, "login", user)
}

// Logout ends the session. Unknown and expired ids succeed silently.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.record("logout", "error")
		return err
	}
	s.record("logout", "success")
	return nil
}

// WhoAmI returns the owner of a valid session, or nil. Store failures are
// logged and reported as an anonymous caller.
func (s *Service) WhoAmI(ctx context.Context, sessionID string) *PublicUser {
	data, err := s.Authenticate(ctx, sessionID)
	if err != nil {
		s.logger.Warn("resolve session", slog.Any("error", err))
		return nil
	}
	if data == nil {
		return nil
	}
	user := data.User.Public()
	return &user
}

// Authenticate resolves sessionID for hard auth gates. Invalid sessions return
// (nil, nil); errors come only from the store.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*SessionData, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.sessions.Get(ctx, sessionID)
}

func (s *Service) checkInput(username, password string) error {
	if err := s.validate.Struct(credentialsInput{Username: username, Password: password}); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return ErrValidation
		}
		return err
	}
	return nil
}

func (s *Service) issue(ctx context.Context, event string, user *User) (*Result, error) {
	sessionID, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		s.record(event, "error")
		return nil, err
	}
	s.record(event, "success")
	return &Result{User: user.Public(), SessionID: sessionID}, nil
}

func (s *Service) record(event, outcome string) {
	if s.events != nil {
		s.events.RecordAuthEvent(event, outcome)
	}
}
