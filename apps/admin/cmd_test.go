package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/user"
	testutil "github.com/trezcool/gradebook/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		db:      &sql.DB{},
		usrSvc:  env.UserSvc,
		sweeper: env.AssignmentSvc,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })
	gooseRunFunc = func(_ context.Context, db *sql.DB, command string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			gotCommand = ""
			tt.check(t, cli.run(args))
			if tt.wantErr == nil && tt.wantErrStr == "" {
				assert.Equal(t, tt.args[1], gotCommand)
			}
		})
	}

	t.Run("memory engine", func(t *testing.T) {
		memCli := &commandLine{usrSvc: cli.usrSvc, sweeper: cli.sweeper}
		assert.Equal(t, errNoSQL, memCli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)

	usr := testutil.CreateUser(t, env.UserRepo, "Jane", "Doe", "jane@test.cd", "Pwd.1234", user.RoleTeacher, "")

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: "lol"},
		{name: "reset with uppercase email", args: []string{"resetpassword", "-email", "JANE@test.cd"}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(pwd)
			before, err := env.UserSvc.GetByID(context.Background(), usr.ID)
			require.NoError(t, err)

			err = cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}
			after, err := env.UserSvc.GetByID(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.False(t, bytes.Equal(before.PasswordHash, after.PasswordHash), "failed to update password")
			assert.NoError(t, after.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	testutil.CreateUser(t, env.UserRepo, "Jane", "Doe", "jane@test.cd", "Pwd.1234", user.RoleTeacher, "")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "missing role", args: []string{"adduser", "-email", "a@test.cd", "-first", "A", "-last", "B"}, wantErr: errHelp},
		{
			name:    "no password",
			args:    []string{"adduser", "-email", "a@test.cd", "-first", "A", "-last", "B", "-role", "student"},
			wantErr: errHelp,
		},
		{
			name:       "weak password",
			args:       []string{"adduser", "-email", "a@test.cd", "-first", "A", "-last", "B", "-role", "student"},
			extra:      "lol",
			wantErrStr: "password: password must contain at least 8 characters",
		},
		{
			name:       "invalid role",
			args:       []string{"adduser", "-email", "a@test.cd", "-first", "A", "-last", "B", "-role", "janitor"},
			extra:      "Pwd.1234",
			wantErrStr: "role: invalid role",
		},
		{
			name:       "duplicate email",
			args:       []string{"adduser", "-email", "jane@test.cd", "-first", "A", "-last", "B", "-role", "admin"},
			extra:      "Pwd.1234",
			wantErrStr: user.ErrEmailExists.Error(),
		},
		{
			name:  "student",
			args:  []string{"adduser", "-email", "a@test.cd", "-first", "Amani", "-last", "Bisimwa", "-role", "student", "-class", "6B"},
			extra: "Pwd.1234",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(pwd)
			tt.check(t, cli.run(args))
		})
	}

	usr, err := env.UserSvc.GetByEmail(context.Background(), "a@test.cd")
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.Equal(t, "6B", usr.ClassLabel)
	assert.Equal(t, "Amani Bisimwa", usr.FullName())
	assert.True(t, usr.IsActive)
}

func Test_commandLine_sweep(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.UserRepo, "Jane", "Doe", "jane@test.cd", "Pwd.1234", user.RoleTeacher, "")
	c := testutil.CreateCourse(t, env.CourseRepo, "6B", teacher.ID, "Math")
	overdue := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Fractions", time.Now().Add(-time.Hour), assignment.StatusUnset)
	upcoming := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Decimals", time.Now().Add(time.Hour), assignment.StatusUnset)

	require.NoError(t, cli.run([]string{"admin", "sweep"}))

	got, err := env.AssignmentRepo.GetAssignment(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusMissed, got.Status)

	got, err = env.AssignmentRepo.GetAssignment(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusUnset, got.Status)
}
