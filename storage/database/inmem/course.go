package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[c.FacultyID]; !ok {
		return course.Course{}, user.ErrNotFound
	}
	c.ID = uuid.New().String()
	c.Students = nil
	repo.db.courses[c.ID] = &c
	repo.db.enrollments[c.ID] = make(map[string]uint64)

	created := c
	created.Students = []user.User{}
	return created, nil
}

// students expects the lock to be held.
func (repo *courseRepository) students(courseID string) []user.User {
	enrolled := repo.db.enrollments[courseID]
	students := make([]user.User, 0, len(enrolled))
	for id := range enrolled {
		if usr, ok := repo.db.users[id]; ok {
			students = append(students, *usr)
		}
	}
	// enrollment order
	sort.Slice(students, func(i, j int) bool {
		return enrolled[students[i].ID] < enrolled[students[j].ID]
	})
	return students
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	c, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	found := *c
	found.Students = repo.students(id)
	return found, nil
}

func (repo *courseRepository) matches(c *course.Course, filter *course.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(c.Title), s) ||
			strings.Contains(strings.ToLower(c.Description), s) ||
			strings.Contains(strings.ToLower(c.Department), s)) {
			return false
		}
	}
	if filter.FacultyID != "" && c.FacultyID != filter.FacultyID {
		return false
	}
	if filter.StudentID != "" {
		if _, ok := repo.db.enrollments[c.ID][filter.StudentID]; !ok {
			return false
		}
	}
	return true
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, orderings ...core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if repo.matches(c, filter) {
			courses = append(courses, *c)
		}
	}
	sortBy(len(courses), func(i, j int) { courses[i], courses[j] = courses[j], courses[i] }, withDefault(orderings),
		func(field string, i, j int) (int, bool) {
			a, b := courses[i], courses[j]
			switch field {
			case "title":
				return cmpStrings(a.Title, b.Title), true
			case "department":
				return cmpStrings(a.Department, b.Department), true
			case "created_at":
				return cmpTimes(a.CreatedAt, b.CreatedAt), true
			case "updated_at":
				return cmpTimes(a.UpdatedAt, b.UpdatedAt), true
			}
			return 0, false
		})
	return courses, nil
}

func (repo *courseRepository) QueryStudents(_ context.Context, courseID string) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.students(courseID), nil
}

func (repo *courseRepository) AddStudent(_ context.Context, courseID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enrolled, ok := repo.db.enrollments[courseID]
	if !ok {
		return course.ErrNotFound
	}
	if _, ok = repo.db.users[studentID]; !ok {
		return course.ErrNotFound
	}
	if _, ok = enrolled[studentID]; ok {
		return course.ErrAlreadyEnrolled
	}
	repo.db.enrollSeq++
	enrolled[studentID] = repo.db.enrollSeq
	return nil
}

func (repo *courseRepository) RemoveStudent(_ context.Context, courseID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enrolled := repo.db.enrollments[courseID]
	if _, ok := enrolled[studentID]; !ok {
		return course.ErrNotEnrolled
	}
	delete(enrolled, studentID)
	return nil
}
