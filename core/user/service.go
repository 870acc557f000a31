package user

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrNotAStudent        = core.NewArgumentError("only students can be enrolled in a course")

	welcomeTemplate = "welcome"
	pwdAlphabet     = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists if another user (not in excludedUsers) has this email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// CreateUsers creates all users or none.
		CreateUsers(ctx context.Context, usrs ...User) ([]User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.FirstName, User.LastName or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// ListByCourse returns the students enrolled in a course, ordered by last then first name.
		ListByCourse(ctx context.Context, courseID string) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		BulkRegister(ctx context.Context, nus []NewUser) ([]User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		ListByCourse(ctx context.Context, courseID string) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetCourse(ctx context.Context, studentID, courseID string) (User, error)
		ResetPassword(ctx context.Context, email, pwd string) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo       Repository
		mailSvc    core.EmailService
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	translator ut.Translator,
) Service {
	InitValidators(validate, translator)
	return &service{
		repo:       repo,
		mailSvc:    mailSvc,
		validate:   validate,
		translator: translator,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) newUser(nu NewUser) (User, error) {
	now := core.NowFunc()
	usr := User{
		ID:                uuid.NewString(),
		FirstName:         nu.FirstName,
		LastName:          nu.LastName,
		Email:             nu.Email,
		Role:              nu.Role,
		ClassLabel:        nu.ClassLabel,
		ProfilePictureURL: nu.ProfilePictureURL,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if nu.Role == RoleStudent {
		usr.CourseID = nu.CourseID
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, core.TranslateErrors(err, svc.translator)
	}
	if nu.Password == "" {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "password", Error: "this field is required"})
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}
	usr, err := svc.newUser(nu)
	if err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// BulkRegister validates every entry first and creates all users or none.
// Entries without a password get a generated one, sent along with the welcome email.
func (svc *service) BulkRegister(ctx context.Context, nus []NewUser) ([]User, error) {
	if len(nus) == 0 {
		return nil, core.NewValidationError(errors.New("no users to register"))
	}

	var fldErrs []core.FieldError
	addErr := func(i int, field, msg string) {
		fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("users[%d].%s", i, field), Error: msg})
	}

	seen := make(map[string]int, len(nus))
	for i := range nus {
		nu := &nus[i]
		if err := nu.Validate(svc.validate); err != nil {
			vErr, ok := core.TranslateErrors(err, svc.translator).(*core.ValidationError)
			if !ok {
				return nil, err
			}
			for _, fe := range vErr.Fields {
				addErr(i, fe.Field, fe.Error)
			}
			continue
		}
		if j, dup := seen[nu.Email]; dup {
			addErr(i, "email", fmt.Sprintf("duplicates users[%d].email", j))
			continue
		}
		seen[nu.Email] = i
		if err := svc.repo.CheckEmailUniqueness(ctx, nu.Email); err != nil {
			if errors.Cause(err) != ErrEmailExists {
				return nil, errors.Wrap(err, "checking email uniqueness")
			}
			addErr(i, "email", err.Error())
		}
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	usrs := make([]User, 0, len(nus))
	pwds := make([]string, 0, len(nus))
	for _, nu := range nus {
		if nu.Password == "" {
			pwd, err := generatePassword(12)
			if err != nil {
				return nil, errors.Wrap(err, "generating password")
			}
			nu.Password = pwd
		}
		usr, err := svc.newUser(nu)
		if err != nil {
			return nil, err
		}
		usrs = append(usrs, usr)
		pwds = append(pwds, nu.Password)
	}

	created, err := svc.repo.CreateUsers(ctx, usrs...)
	if err != nil {
		return nil, errors.Wrap(err, "creating users")
	}
	svc.sendWelcomeMails(created, pwds)
	return created, nil
}

type welcomeData struct {
	Name     string
	Email    string
	Role     string
	Password string
}

func (svc *service) sendWelcomeMails(usrs []User, pwds []string) {
	if svc.mailSvc == nil {
		return
	}
	msgs := make([]*core.EmailMessage, 0, len(usrs))
	for i, usr := range usrs {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
			Subject:      "Your account",
			TemplateName: welcomeTemplate,
			TemplateData: welcomeData{
				Name:     usr.FirstName,
				Email:    usr.Email,
				Role:     usr.Role.Label(),
				Password: pwds[i],
			},
		})
	}
	svc.mailSvc.SendMessages(msgs...)
}

// Authenticate checks the credentials of an active user and records the login time.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr.LastLogin = core.NowFunc()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: core.CleanString(id, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

func (svc *service) ListByCourse(ctx context.Context, courseID string) ([]User, error) {
	if courseID == "" {
		return []User{}, nil
	}
	return svc.repo.ListByCourse(ctx, courseID)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err = uu.Validate(svc.validate, usr); err != nil {
		return User{}, core.TranslateErrors(err, svc.translator)
	}
	if uu.Email != usr.Email {
		if err = svc.checkUniqueness(ctx, uu.Email, usr); err != nil {
			return User{}, err
		}
	}

	usr.FirstName = uu.FirstName
	usr.LastName = uu.LastName
	usr.Email = uu.Email
	usr.ClassLabel = uu.ClassLabel
	usr.ProfilePictureURL = uu.ProfilePictureURL
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetCourse enrolls a student in a course; an empty courseID un-enrolls them.
func (svc *service) SetCourse(ctx context.Context, studentID, courseID string) (User, error) {
	usr, err := svc.GetByID(ctx, studentID)
	if err != nil {
		return User{}, err
	}
	switch usr.Role {
	case RoleStudent:
	case RoleTeacher, RoleAdmin:
		return User{}, ErrNotAStudent
	default:
		return User{}, ErrInvalidRole
	}
	usr.CourseID = courseID
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// ResetPassword sets a new password without checking the password policy (admin use).
func (svc *service) ResetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// generatePassword returns a random password that satisfies the password policy.
func generatePassword(n int) (string, error) {
	buf := make([]byte, 0, n+2)
	max := big.NewInt(int64(len(pwdAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf = append(buf, pwdAlphabet[idx.Int64()])
	}
	// force every character class
	buf = append(buf, 'x', 'K', '7', '#')
	return string(buf), nil
}
