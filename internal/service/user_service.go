package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/instrument-market/internal/auth"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
	"gorm.io/gorm"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,20}$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern    = regexp.MustCompile(`^1[3-9]\d{9}$`)
	elevenDigits    = regexp.MustCompile(`^\d{11}$`)
)

const minPasswordLen = 6

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Phone           string
}

type ProfileInput struct {
	RealName  *string
	Phone     *string
	StudentID *string
	Avatar    *string
}

// Session is the result of a successful register or login.
type Session struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, identifier, password string) (*Session, error)
	Profile(ctx context.Context, userID uint64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uint64, in ProfileInput) (*model.User, error)
	ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword, confirm string) error
	ResolveFirebaseUser(ctx context.Context, uid, email, name string) (*model.User, error)
}

type userService struct {
	users  repository.UserRepository
	tokens *auth.Issuer
}

func NewUserService(users repository.UserRepository, tokens *auth.Issuer) UserService {
	return &userService{users: users, tokens: tokens}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	if !usernamePattern.MatchString(in.Username) {
		return nil, invalid("username must be 4-20 letters, digits or underscores")
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, invalid("invalid email")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return nil, invalid("password must be at least %d characters", minPasswordLen)
	}
	if in.Password != in.ConfirmPassword {
		return nil, invalid("passwords do not match")
	}
	if in.Phone != "" && !phonePattern.MatchString(in.Phone) {
		return nil, invalid("invalid phone number")
	}

	checks := []struct{ column, value, label string }{
		{"username", in.Username, "username"},
		{"email", in.Email, "email"},
	}
	if in.Phone != "" {
		checks = append(checks, struct{ column, value, label string }{"phone", in.Phone, "phone"})
	}
	for _, c := range checks {
		exists, err := s.users.Exists(ctx, c.column, c.value)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, conflict("%s already registered", c.label)
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.UserRoleUser,
		CreditScore:  100,
	}
	if in.Phone != "" {
		phone := in.Phone
		u.Phone = &phone
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("account already registered")
		}
		return nil, err
	}
	return s.session(u)
}

func (s *userService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, invalid("identifier and password are required")
	}

	var (
		u   *model.User
		err error
	)
	switch {
	case strings.Contains(identifier, "@"):
		u, err = s.users.FindByEmail(ctx, strings.ToLower(identifier))
	case elevenDigits.MatchString(identifier):
		u, err = s.users.FindByPhone(ctx, identifier)
	default:
		u, err = s.users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	if u.Role == model.UserRoleSeller && !u.IsVerified {
		return nil, forbidden("seller account is not verified")
	}
	return s.session(u)
}

func (s *userService) session(u *model.User) (*Session, error) {
	token, exp, err := s.tokens.Generate(u.ID, u.Username, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}

func (s *userService) Profile(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint64, in ProfileInput) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	fields := map[string]interface{}{}
	if in.RealName != nil {
		fields["real_name"] = strings.TrimSpace(*in.RealName)
	}
	if in.StudentID != nil {
		fields["student_id"] = strings.TrimSpace(*in.StudentID)
	}
	if in.Avatar != nil {
		fields["avatar"] = strings.TrimSpace(*in.Avatar)
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		switch {
		case phone == "":
			fields["phone"] = nil
		case !phonePattern.MatchString(phone):
			return nil, invalid("invalid phone number")
		case u.Phone == nil || *u.Phone != phone:
			exists, err := s.users.Exists(ctx, "phone", phone)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, conflict("phone already registered")
			}
			fields["phone"] = phone
		}
	}
	if len(fields) > 0 {
		if err := s.users.Update(ctx, userID, fields); err != nil {
			return nil, notFound(err, "user")
		}
	}
	return s.Profile(ctx, userID)
}

func (s *userService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword, confirm string) error {
	if oldPassword == "" || newPassword == "" {
		return invalid("current and new password are required")
	}
	if utf8.RuneCountInString(newPassword) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	if newPassword != confirm {
		return invalid("passwords do not match")
	}
	if newPassword == oldPassword {
		return invalid("new password must differ from the current one")
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, "user")
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return invalid("current password is incorrect")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, userID, map[string]interface{}{"password_hash": hash})
}

// ResolveFirebaseUser maps a verified Firebase identity to a local user.
func (s *userService) ResolveFirebaseUser(ctx context.Context, uid, email, name string) (*model.User, error) {
	if uid == "" {
		return nil, ErrUnauthorized
	}
	return s.users.FindOrCreateByFirebaseUID(ctx, uid, strings.ToLower(email), name)
}
