package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

// ErrUpstreamUnavailable is matched (errors.Is) by every UpstreamError.
var ErrUpstreamUnavailable = errors.New("attendance service unavailable")

type Status string

const (
	StatusAbsent Status = "ABSENT"
	StatusLate   Status = "LATE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAbsent, StatusLate:
		return true
	}
	return false
}

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Record is an attendance record as returned by the attendance service.
type Record struct {
	ID            ID        `json:"id"`
	StudentID     ID        `json:"studentId"`
	Status        Status    `json:"status"`
	MarkedByID    ID        `json:"markedById"`
	StudentName   string    `json:"studentName"`
	StudentCourse string    `json:"studentCourse"`
	CreatedAt     time.Time `json:"createdAt"`
}

type NewRecord struct {
	StudentID  string `json:"studentId"`
	Name       string `json:"name"`
	CourseName string `json:"courseName"`
	Status     Status `json:"status"`
}

// Client talks to the attendance service on behalf of a user (token is their bearer credential).
type Client interface {
	Create(ctx context.Context, token string, nr NewRecord) (Record, error)
	ListByStudent(ctx context.Context, token, studentID string) ([]Record, error)
	Delete(ctx context.Context, token, id string) error
}

// UpstreamError wraps a failed call to the attendance service.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstreamUnavailable, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

type Summary struct {
	Absences int    `json:"absences"`
	Lates    int    `json:"lates"`
	Display  string `json:"display"`
}

// Summarize counts absences and late arrivals.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		switch r.Status {
		case StatusAbsent:
			s.Absences++
		case StatusLate:
			s.Lates++
		}
	}
	s.Display = fmt.Sprintf("%d %s, %d %s",
		s.Absences, plural(s.Absences, "absence", "absences"),
		s.Lates, plural(s.Lates, "late arrival", "late arrivals"))
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

type (
	Service interface {
		// ListForStudent never fails: errors are logged and an empty list is returned.
		ListForStudent(ctx context.Context, token, studentID string) []Record
		Mark(ctx context.Context, token string, nr NewRecord) (Record, error)
		Delete(ctx context.Context, token, id string) error
	}

	service struct {
		client Client
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(client Client, logger core.Logger) Service {
	return &service{client: client, logger: logger}
}

func (svc *service) ListForStudent(ctx context.Context, token, studentID string) []Record {
	records, err := svc.client.ListByStudent(ctx, token, studentID)
	if err != nil {
		svc.logger.Warn("fetching attendance records", errors.Wrap(err, "fetching attendance records"),
			map[string]interface{}{"student": studentID})
		return []Record{}
	}
	if records == nil {
		return []Record{}
	}
	return records
}

func (svc *service) Mark(ctx context.Context, token string, nr NewRecord) (Record, error) {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.Name = core.CleanString(nr.Name)
	nr.CourseName = core.CleanString(nr.CourseName)
	nr.Status = Status(strings.ToUpper(core.CleanString(string(nr.Status))))

	var fldErrs []core.FieldError
	if nr.StudentID == "" {
		fldErrs = append(fldErrs, core.FieldError{Field: "studentId", Error: "this field is required"})
	}
	if !nr.Status.Valid() {
		fldErrs = append(fldErrs, core.FieldError{Field: "status", Error: "status must be one of ABSENT, LATE"})
	}
	if len(fldErrs) > 0 {
		return Record{}, core.NewValidationError(nil, fldErrs...)
	}

	rec, err := svc.client.Create(ctx, token, nr)
	if err != nil {
		return Record{}, &UpstreamError{Op: "creating attendance record", Err: err}
	}
	return rec, nil
}

func (svc *service) Delete(ctx context.Context, token, id string) error {
	id = core.CleanString(id)
	if id == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	}
	if err := svc.client.Delete(ctx, token, id); err != nil {
		return &UpstreamError{Op: "deleting attendance record", Err: err}
	}
	return nil
}
