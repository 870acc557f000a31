package inmemdb

import (
	"sync"

	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

type (
	// DB is an in-process store for the local demo mode and for tests.
	DB struct {
		user       *userTable
		course     *courseTable
		assignment *assignmentTable
		grade      *gradeTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]user.User
	}

	courseTable struct {
		sync.RWMutex
		table map[string]course.Course
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]assignment.Assignment
	}

	gradeTable struct {
		sync.RWMutex
		table map[string]grade.Grade
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]user.User)},
		course:     &courseTable{table: make(map[string]course.Course)},
		assignment: &assignmentTable{table: make(map[string]assignment.Assignment)},
		grade:      &gradeTable{table: make(map[string]grade.Grade)},
	}
}
