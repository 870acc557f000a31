package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/gradebook/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// copyCourse detaches the subjects slice from the stored row.
func copyCourse(c course.Course) course.Course {
	c.Subjects = append(make([]string, 0, len(c.Subjects)), c.Subjects...)
	return c
}

func sortCourses(courses []course.Course) {
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := strings.ToLower(courses[i].Name), strings.ToLower(courses[j].Name)
		if a != b {
			return a < b
		}
		return courses[i].ID < courses[j].ID
	})
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	tbl := repo.db.course
	tbl.Lock()
	defer tbl.Unlock()
	tbl.table[c.ID] = copyCourse(c)
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	tbl := repo.db.course
	tbl.RLock()
	defer tbl.RUnlock()
	c, ok := tbl.table[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return copyCourse(c), nil
}

func (repo *courseRepository) list(keep func(c course.Course) bool) []course.Course {
	tbl := repo.db.course
	tbl.RLock()
	defer tbl.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range tbl.table {
		if keep(c) {
			courses = append(courses, copyCourse(c))
		}
	}
	sortCourses(courses)
	return courses
}

func (repo *courseRepository) ListByTeacher(_ context.Context, teacherID string) ([]course.Course, error) {
	return repo.list(func(c course.Course) bool { return c.TeacherID == teacherID }), nil
}

func (repo *courseRepository) ListCourses(_ context.Context) ([]course.Course, error) {
	return repo.list(func(course.Course) bool { return true }), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	tbl := repo.db.course
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.table[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	c.CreatedAt = orig.CreatedAt
	tbl.table[c.ID] = copyCourse(c)
	return c, nil
}

// DeleteCourse also removes the course's assignments & grades and un-enrolls its students.
func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	db := repo.db
	db.user.Lock()
	defer db.user.Unlock()
	db.course.Lock()
	defer db.course.Unlock()
	db.assignment.Lock()
	defer db.assignment.Unlock()
	db.grade.Lock()
	defer db.grade.Unlock()

	if _, ok := db.course.table[id]; !ok {
		return course.ErrNotFound
	}
	delete(db.course.table, id)

	for uid, usr := range db.user.table {
		if usr.CourseID == id {
			usr.CourseID = ""
			db.user.table[uid] = usr
		}
	}
	for aid, a := range db.assignment.table {
		if a.CourseID == id {
			delete(db.assignment.table, aid)
		}
	}
	for gid, g := range db.grade.table {
		if g.CourseID == id {
			delete(db.grade.table, gid)
		}
	}
	return nil
}
