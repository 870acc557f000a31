package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
	testutil "github.com/trezcool/gradebook/tests"
)

const testPassword = "Pwd.1234"

var (
	errMissingSession = []byte(`{"error":"user not authenticated"}`)
	errForbidden      = []byte(`{"error":"permission denied"}`)
)

type fixture struct {
	env     *testutil.Env
	app     Server
	admin   user.User
	teacher user.User
	other   user.User // another teacher
	student user.User
	course  course.Course
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	f := &fixture{env: env}
	f.app = NewServer(env.Conf, nil /* shutdown */, &Deps{
		Logger:        core.NewNopLogger(),
		Translator:    env.Translator,
		UserSvc:       env.UserSvc,
		CourseSvc:     env.CourseSvc,
		AssignmentSvc: env.AssignmentSvc,
		GradeSvc:      env.GradeSvc,
		AttendanceSvc: env.AttendanceSvc,
		DashboardSvc:  env.DashboardSvc,
	})

	f.admin = testutil.CreateUser(t, env.UserRepo, "Ada", "Admin", "admin@test.cd", testPassword, user.RoleAdmin, "")
	f.teacher = testutil.CreateUser(t, env.UserRepo, "Tom", "Teacher", "tom@test.cd", testPassword, user.RoleTeacher, "")
	f.other = testutil.CreateUser(t, env.UserRepo, "Olga", "Other", "olga@test.cd", testPassword, user.RoleTeacher, "")
	f.course = testutil.CreateCourse(t, env.CourseRepo, "6B", f.teacher.ID, "Math", "English")
	f.student = testutil.CreateUser(t, env.UserRepo, "Sam", "Student", "sam@test.cd", testPassword, user.RoleStudent, f.course.ID)
	return f
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	return req, httptest.NewRecorder()
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func newFormRequest(path, token string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	req, rec := newAuthRequest(http.MethodPost, path, token, []byte(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(NewClaims(usr, "Masomo", time.Hour), "secret")
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decodeFields(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var fields map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields), rec.Body.String())
	return fields
}

func attendanceRecord(student user.User, c course.Course) attendance.NewRecord {
	return attendance.NewRecord{
		StudentID:  student.ID,
		Name:       student.FullName(),
		CourseName: c.Name,
		Status:     attendance.StatusAbsent,
	}
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func TestHealth(t *testing.T) {
	f := setup(t)
	tt := httpTest{wantCode: http.StatusOK, wantData: []byte(`{"status":"ok","build":"test"}`)}

	req, rec := newRequest(http.MethodGet, "/health")
	f.app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func TestLogin(t *testing.T) {
	f := setup(t)

	t.Run("page", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/login")
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="password"`)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		req, rec := newFormRequest("/login", "", url.Values{"email": {"tom@test.cd"}, "password": {"wrong"}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), user.ErrInvalidCredentials.Error())
		assert.Nil(t, sessionCookie(rec))
	})

	t.Run("deactivated", func(t *testing.T) {
		inactive := testutil.CreateUser(t, f.env.UserRepo, "N", "Dog", "ndog@test.cd", testPassword, user.RoleStudent, "")
		_, err := f.env.UserSvc.Update(context.Background(), inactive.ID, user.UpdateUser{IsActive: new(bool)})
		require.NoError(t, err)

		req, rec := newFormRequest("/login", "", url.Values{"email": {"ndog@test.cd"}, "password": {testPassword}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, sessionCookie(rec))
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newFormRequest("/login", "", url.Values{"email": {" TOM@test.cd "}, "password": {testPassword}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)

		// the new session is usable right away
		req, rec = newAuthRequest(http.MethodGet, "/", cookie.Value)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/teacher/home", rec.Header().Get(echo.HeaderLocation))
	})
}

func TestLogout(t *testing.T) {
	f := setup(t)

	req, rec := newAuthRequest(http.MethodPost, "/logout", getToken(t, f.teacher))
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0)
}

func TestHomeRedirects(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		usr  user.User
		want string
	}{
		{"admin", f.admin, "/admin-panel"},
		{"teacher", f.teacher, "/teacher/home"},
		{"student", f.student, "/student/home"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/", getToken(t, tc.usr))
			f.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.want, rec.Header().Get(echo.HeaderLocation))
		})
	}
}

func TestAuthentication(t *testing.T) {
	f := setup(t)

	expired, err := GenerateToken(NewClaims(f.teacher, "Masomo", -time.Hour), "secret")
	require.NoError(t, err)
	forged, err := GenerateToken(NewClaims(f.teacher, "Masomo", time.Hour), "not-the-secret")
	require.NoError(t, err)

	inactive := testutil.CreateUser(t, f.env.UserRepo, "N", "Dog", "ndog@test.cd", testPassword, user.RoleTeacher, "")
	inactiveToken := getToken(t, inactive)
	_, err = f.env.UserSvc.Update(context.Background(), inactive.ID, user.UpdateUser{IsActive: new(bool)})
	require.NoError(t, err)

	deleted := testutil.CreateUser(t, f.env.UserRepo, "D", "Gone", "gone@test.cd", testPassword, user.RoleTeacher, "")
	deletedToken := getToken(t, deleted)
	require.NoError(t, f.env.UserSvc.Delete(context.Background(), deleted.ID))

	t.Run("pages redirect to login", func(t *testing.T) {
		for _, token := range []string{"", "garbage", expired, forged, inactiveToken, deletedToken} {
			req, rec := newAuthRequest(http.MethodGet, "/teacher/home", token)
			f.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusFound, rec.Code, "token %q", token)
			assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
		}
	})

	t.Run("API answers 401", func(t *testing.T) {
		tests := []httpTest{
			{name: "no session", method: http.MethodGet, path: "/api/v1/teacher/grading"},
			{name: "bad token", method: http.MethodGet, path: "/api/v1/teacher/grading", token: "garbage"},
			{name: "expired", method: http.MethodGet, path: "/api/v1/teacher/grading", token: expired},
			{name: "forged", method: http.MethodGet, path: "/api/v1/teacher/grading", token: forged},
			{name: "deactivated", method: http.MethodGet, path: "/api/v1/teacher/grading", token: inactiveToken},
			{name: "deleted", method: http.MethodGet, path: "/api/v1/teacher/grading", token: deletedToken},
			{name: "student home", method: http.MethodGet, path: "/api/v1/student/home"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.wantCode = http.StatusUnauthorized
				tt.wantData = errMissingSession
				req, rec := newAuthRequest(tt.method, tt.path, tt.token)
				f.app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
	})
}

func TestRoles(t *testing.T) {
	f := setup(t)
	studentToken := getToken(t, f.student)
	teacherToken := getToken(t, f.teacher)

	t.Run("API", func(t *testing.T) {
		tests := []httpTest{
			{name: "student on teacher API", path: "/api/v1/teacher/grades?studentId=" + f.student.ID, token: studentToken},
			{name: "teacher on student API", path: "/api/v1/student/home", token: teacherToken},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.wantCode = http.StatusForbidden
				tt.wantData = errForbidden
				req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
				f.app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	t.Run("pages", func(t *testing.T) {
		for _, tc := range []struct{ path, token string }{
			{"/admin-panel", teacherToken},
			{"/teacher/home", studentToken},
			{"/student/home", teacherToken},
		} {
			req, rec := newAuthRequest(http.MethodGet, tc.path, tc.token)
			f.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code, tc.path)
			assert.Contains(t, rec.Body.String(), "permission denied", tc.path)
		}
	})
}

func TestPagesRender(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateGrade(t, f.env.GradeRepo, grade.Grade{
		StudentID: f.student.ID, CourseID: f.course.ID, Subject: "Math", Letter: grade.LetterGood,
		Assignment: "Dictation", TeacherID: f.teacher.ID,
	})
	testutil.CreateAssignment(t, f.env.AssignmentRepo, f.course, "Essay", time.Now().Add(48*time.Hour), "")
	_, err := f.env.AttendanceSvc.Mark(ctx, "", attendanceRecord(f.student, f.course))
	require.NoError(t, err)

	tests := []struct {
		path  string
		usr   user.User
		wants []string
	}{
		{"/student/home", f.student, []string{"Sam Student", "6B", "Essay", "1 absence, 0 late arrivals"}},
		{"/student/grades", f.student, []string{"Math", "Dictation"}},
		{"/student/assignments", f.student, []string{"Essay", "Turn in"}},
		{"/teacher/home", f.teacher, []string{"Tom Teacher", "6B", "Essay"}},
		{"/teacher/grading", f.teacher, []string{"Sam", "Dictation", "entries[" + f.student.ID + "]"}},
		{"/admin-panel", f.admin, []string{"sam@test.cd", "olga@test.cd", "6B"}},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tc.path, getToken(t, tc.usr))
			f.app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			for _, want := range tc.wants {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestTeacherGradesAPI(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.teacher)

	t.Run("list requires studentId", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"studentId":"this field is required"}`)}
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/teacher/grades", token)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("create validates", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/teacher/grades", token, []byte(`{}`))
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		fields := decodeFields(t, rec)
		assert.Contains(t, fields, "student_id")
		assert.Contains(t, fields, "course_id")
		assert.Contains(t, fields, "type")
	})

	t.Run("create for a foreign course", func(t *testing.T) {
		body := marshallObj(t, grade.NewGrade{
			StudentID: f.student.ID, CourseID: f.course.ID, Subject: "Math", Letter: "GOOD", Type: grade.TypeTest,
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/teacher/grades", getToken(t, f.other), body)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var created grade.Grade
	t.Run("create", func(t *testing.T) {
		body := marshallObj(t, grade.NewGrade{
			StudentID: f.student.ID, CourseID: f.course.ID, Subject: "Math", Letter: "GOOD",
			Type: grade.TypeTest, Assignment: "Quiz 1",
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/teacher/grades", token, body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, grade.LetterGood, created.Letter)
		assert.Equal(t, f.teacher.ID, created.TeacherID)
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/teacher/grades?studentId="+f.student.ID, token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var grades []grade.Grade
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grades))
		require.Len(t, grades, 1)
		assert.Equal(t, created.ID, grades[0].ID)
	})

	t.Run("feedback", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/api/v1/teacher/grades/"+created.ID+"/feedback", token,
			[]byte(`{"feedback":"Well done"}`))
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var g grade.Grade
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
		assert.Equal(t, "Well done", g.Feedback)
	})

	t.Run("bulk", func(t *testing.T) {
		body := marshallObj(t, grade.BulkGrades{
			CourseID:   f.course.ID,
			Assignment: "Dictation",
			Subject:    "English",
			Type:       grade.TypeExam,
			Entries:    map[string]string{f.student.ID: "excellent"},
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/teacher/grades/bulk", token, body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var grades []grade.Grade
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grades))
		require.Len(t, grades, 1)
		assert.Equal(t, grade.LetterExcellent, grades[0].Letter)
	})

	t.Run("bulk rejects bad entries", func(t *testing.T) {
		body := marshallObj(t, grade.BulkGrades{
			CourseID:   f.course.ID,
			Assignment: "Dictation 2",
			Subject:    "English",
			Type:       grade.TypeExam,
			Entries:    map[string]string{f.student.ID: "Z+"},
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/teacher/grades/bulk", token, body)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeFields(t, rec), "entries["+f.student.ID+"]")
	})

	t.Run("grading sheet", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/teacher/grading?course="+f.course.ID+"&subject=English", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sheet struct {
			SelectedCourse  *course.Course         `json:"selected_course"`
			SelectedSubject string                 `json:"selected_subject"`
			ExistingGrades  map[string]grade.Grade `json:"existing_grades"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sheet))
		require.NotNil(t, sheet.SelectedCourse)
		assert.Equal(t, f.course.ID, sheet.SelectedCourse.ID)
		assert.Equal(t, "English", sheet.SelectedSubject)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/v1/teacher/grades/"+created.ID, token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/api/v1/teacher/grades/"+created.ID, token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStudentHomeAPI(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.student)

	req, rec := newAuthRequest(http.MethodGet, "/api/v1/student/home", token)
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var home struct {
		Profile struct {
			Email      string  `json:"email"`
			CourseName *string `json:"course_name"`
		} `json:"profile"`
		Leaderboard []json.RawMessage `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &home))
	assert.Equal(t, "sam@test.cd", home.Profile.Email)
	require.NotNil(t, home.Profile.CourseName)
	assert.Equal(t, "6B", *home.Profile.CourseName)
	assert.Len(t, home.Leaderboard, 1)

	// the session token is forwarded to the attendance service
	assert.Contains(t, f.env.Attendance.Tokens, token)
}

func TestStudentTurnIn(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.student)
	a := testutil.CreateAssignment(t, f.env.AssignmentRepo, f.course, "Essay", time.Now().Add(48*time.Hour), "")

	req, rec := newAuthRequest(http.MethodPost, "/student/assignments/"+a.ID+"/turn-in", token)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/student/assignments", rec.Header().Get(echo.HeaderLocation))

	// already resolved
	req, rec = newAuthRequest(http.MethodPost, "/student/assignments/"+a.ID+"/turn-in", token)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeacherSaveGrades(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.teacher)
	entry := "entries[" + f.student.ID + "]"

	t.Run("invalid entry redisplays the sheet", func(t *testing.T) {
		req, rec := newFormRequest("/teacher/grading", token, url.Values{
			"course":     {f.course.ID},
			"assignment": {"Dictation"},
			"subject":    {"Math"},
			"type":       {"test"},
			entry:        {"Z+"},
		})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `class="errors"`)
		assert.Contains(t, rec.Body.String(), "Dictation")

		grades, err := f.env.GradeSvc.ListByStudent(context.Background(), f.student.ID)
		require.NoError(t, err)
		assert.Empty(t, grades)
	})

	t.Run("invalid date", func(t *testing.T) {
		req, rec := newFormRequest("/teacher/grading", token, url.Values{
			"course":     {f.course.ID},
			"assignment": {"Dictation"},
			"subject":    {"Math"},
			"type":       {"TEST"},
			"date":       {"yesterday"},
			entry:        {"GOOD"},
		})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "enter a valid date")
	})

	t.Run("saved", func(t *testing.T) {
		req, rec := newFormRequest("/teacher/grading", token, url.Values{
			"course":     {f.course.ID},
			"assignment": {"Dictation"},
			"subject":    {"Math"},
			"type":       {"test"},
			"date":       {"2025-03-14"},
			entry:        {"GOOD"},
		})
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

		loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
		require.NoError(t, err)
		assert.Equal(t, "/teacher/grading", loc.Path)
		assert.Equal(t, f.course.ID, loc.Query().Get("course"))
		assert.Equal(t, grade.OptionID("Dictation"), loc.Query().Get("assignment"))
		assert.Equal(t, "Math", loc.Query().Get("subject"))

		grades, err := f.env.GradeSvc.ListByStudent(context.Background(), f.student.ID)
		require.NoError(t, err)
		require.Len(t, grades, 1)
		assert.Equal(t, grade.LetterGood, grades[0].Letter)
		assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), grades[0].GradedAt)
	})
}

func TestTeacherForms(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := getToken(t, f.teacher)

	t.Run("create course", func(t *testing.T) {
		req, rec := newFormRequest("/teacher/courses", token, url.Values{"name": {"7A"}, "subjects": {"Physics, Math"}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)

		courses, err := f.env.CourseSvc.ListByTeacher(ctx, f.teacher.ID)
		require.NoError(t, err)
		assert.Len(t, courses, 2)
	})

	t.Run("create assignment", func(t *testing.T) {
		due := time.Now().Add(72 * time.Hour).Format(dateLayout)
		req, rec := newFormRequest("/teacher/assignments", token, url.Values{
			"course_id": {f.course.ID},
			"title":     {"Lab report"},
			"type":      {"project"},
			"due_date":  {due},
		})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)

		as, err := f.env.AssignmentSvc.ListByCourse(ctx, f.course.ID)
		require.NoError(t, err)
		require.Len(t, as, 1)
		assert.Equal(t, "Lab report", as[0].Title)
	})

	t.Run("create assignment with a bad due date", func(t *testing.T) {
		req, rec := newFormRequest("/teacher/assignments", token, url.Values{
			"course_id": {f.course.ID},
			"title":     {"Lab report"},
			"type":      {"project"},
			"due_date":  {"31/12/2025"},
		})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("mark attendance", func(t *testing.T) {
		req, rec := newFormRequest("/teacher/attendance", token, url.Values{"student_id": {f.student.ID}, "status": {"late"}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		require.Len(t, f.env.Attendance.Records, 1)
		assert.Equal(t, "Sam Student", f.env.Attendance.Records[0].StudentName)
		assert.Equal(t, "6B", f.env.Attendance.Records[0].StudentCourse)
		assert.Contains(t, f.env.Attendance.Tokens, token)
	})

	t.Run("mark attendance outside own courses", func(t *testing.T) {
		req, rec := newFormRequest("/teacher/attendance", getToken(t, f.other), url.Values{
			"student_id": {f.student.ID}, "status": {"ABSENT"},
		})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "you do not teach this course")
	})

	t.Run("attendance service down", func(t *testing.T) {
		f.env.Attendance.Fail()
		req, rec := newFormRequest("/teacher/attendance", token, url.Values{"student_id": {f.student.ID}, "status": {"ABSENT"}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestAdminPanel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := getToken(t, f.admin)

	t.Run("bulk register", func(t *testing.T) {
		csv := "Jane, Doe, jane@test.cd, teacher\nJohn,Smith,john@test.cd,student,6B\n"
		req, rec := newFormRequest("/admin-panel/users/bulk", token, url.Values{"users": {csv}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.Equal(t, "/admin-panel", rec.Header().Get(echo.HeaderLocation))

		john, err := f.env.UserSvc.GetByEmail(ctx, "john@test.cd")
		require.NoError(t, err)
		assert.Equal(t, user.RoleStudent, john.Role)
		assert.Equal(t, "6B", john.ClassLabel)
		assert.Len(t, f.env.Mail.SentMessages(), 2)
	})

	t.Run("bulk register rejects short lines", func(t *testing.T) {
		req, rec := newFormRequest("/admin-panel/users/bulk", token, url.Values{"users": {"Jim,Beam"}})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("enroll", func(t *testing.T) {
		newbie := testutil.CreateUser(t, f.env.UserRepo, "Nia", "New", "nia@test.cd", "", user.RoleStudent, "")
		req, rec := newFormRequest("/admin-panel/courses/"+f.course.ID+"/enroll", token, url.Values{
			"student_ids": {newbie.ID, " "},
		})
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

		usr, err := f.env.UserSvc.GetByID(ctx, newbie.ID)
		require.NoError(t, err)
		assert.Equal(t, f.course.ID, usr.CourseID)
	})

	t.Run("cannot delete self", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/admin-panel/users/"+f.admin.ID+"/delete", token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		_, err := f.env.UserSvc.GetByID(ctx, f.admin.ID)
		assert.NoError(t, err)
	})

	t.Run("delete unknown user", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/admin-panel/users/nope/delete", token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/admin-panel/users/"+f.other.ID+"/delete", token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)

		_, err := f.env.UserSvc.GetByID(ctx, f.other.ID)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/admin-panel?role=STUDENT&search=sam", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "sam@test.cd")
		assert.False(t, strings.Contains(body, "tom@test.cd"), "teacher listed in a student search")
	})
}
