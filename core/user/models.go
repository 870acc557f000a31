package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/gradebook/core"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

func (r Role) Label() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleTeacher:
		return "Teacher"
	case RoleAdmin:
		return "Admin"
	}
	return string(r)
}

// ParseRole is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(core.CleanString(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

type User struct {
	ID                string    `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	ClassLabel        string    `json:"class_label,omitempty"`
	CourseID          string    `json:"course_id,omitempty"` // students only
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
	IsActive          bool      `json:"is_active"`
	PasswordHash      []byte    `json:"-"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
	LastLogin         time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

func (u User) FullName() string { return core.FullName(u.FirstName, u.LastName) }
func (u User) Initials() string { return core.Initials(u.FirstName, u.LastName) }

// NewUser contains information needed to create a new User.
// An empty Password is only accepted by Service.BulkRegister, which generates one.
type NewUser struct {
	FirstName         string `json:"first_name" validate:"notblank,max=100"`
	LastName          string `json:"last_name" validate:"notblank,max=100"`
	Email             string `json:"email" validate:"required,email,max=254"`
	Role              Role   `json:"role" validate:"required,role"`
	ClassLabel        string `json:"class_label" validate:"omitempty,max=50"`
	CourseID          string `json:"course_id" validate:"omitempty,uuid"`
	ProfilePictureURL string `json:"profile_picture_url" validate:"omitempty,url"`
	Password          string `json:"password"`
	PasswordConfirm   string `json:"password_confirm" validate:"eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(strings.ToUpper(core.CleanString(string(nu.Role))))
	nu.ClassLabel = core.CleanString(nu.ClassLabel)
	nu.CourseID = core.CleanString(nu.CourseID, true /* lower */)
	nu.ProfilePictureURL = core.CleanString(nu.ProfilePictureURL)
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// The role of a user cannot change after creation.
type UpdateUser struct {
	FirstName         string `json:"first_name" validate:"max=100"`
	LastName          string `json:"last_name" validate:"max=100"`
	Email             string `json:"email" validate:"omitempty,email,max=254"`
	ClassLabel        string `json:"class_label" validate:"omitempty,max=50"`
	ProfilePictureURL string `json:"profile_picture_url" validate:"omitempty,url"`
	IsActive          *bool  `json:"is_active"`
	Password          string `json:"password" validate:"omitempty"`
	PasswordConfirm   string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// Validate fills blank fields from origUsr before validating.
func (uu *UpdateUser) Validate(validate *validator.Validate, origUsr User) error {
	if name := core.CleanString(uu.FirstName); name != "" {
		uu.FirstName = name
	} else {
		uu.FirstName = origUsr.FirstName
	}
	if name := core.CleanString(uu.LastName); name != "" {
		uu.LastName = name
	} else {
		uu.LastName = origUsr.LastName
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if label := core.CleanString(uu.ClassLabel); label != "" {
		uu.ClassLabel = label
	} else {
		uu.ClassLabel = origUsr.ClassLabel
	}
	if pic := core.CleanString(uu.ProfilePictureURL); pic != "" {
		uu.ProfilePictureURL = pic
	} else {
		uu.ProfilePictureURL = origUsr.ProfilePictureURL
	}
	return validate.Struct(uu)
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search   string `query:"search"`
	Roles    []Role `query:"role"`
	IsActive *bool  `query:"is_active"`
	CourseID string `query:"course_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CourseID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.CourseID = core.CleanString(qf.CourseID, true /* lower */)
}

// NameLess orders users by last name, first name (case-insensitive) then ID.
func NameLess(a, b User) bool {
	al, bl := strings.ToLower(a.LastName), strings.ToLower(b.LastName)
	if al != bl {
		return al < bl
	}
	af, bf := strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)
	if af != bf {
		return af < bf
	}
	return a.ID < b.ID
}

// SortableFields are the fields QueryUsers accepts in an ordering.
var SortableFields = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"email":      true,
	"role":       true,
	"created_at": true,
	"last_login": true,
}
