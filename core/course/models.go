package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type Course struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Department  string      `json:"department,omitempty"`
	FacultyID   string      `json:"faculty_id"`
	Students    []user.User `json:"students,omitempty"` // loaded for single courses only
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

// HasStudent reports whether the student with the given ID is enrolled.
func (c *Course) HasStudent(studentID string) bool {
	for _, s := range c.Students {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description"`
	Department  string `json:"department" validate:"max=255"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Department = core.CleanString(nc.Department)
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search    string `query:"search"`
	FacultyID string `query:"-"`
	StudentID string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// EnrollmentRequest lists the emails of the students to add to a course.
type EnrollmentRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,max=500"`
}

func (er *EnrollmentRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(er)
}

type (
	AddedStudent struct {
		Email   string    `json:"email"`
		Student user.User `json:"student"`
		Message string    `json:"message"`
	}

	EnrollmentError struct {
		Email   string `json:"email"`
		Message string `json:"message"`
	}

	// EnrollmentResult has one entry per requested email, in request order.
	EnrollmentResult struct {
		AddedStudents []AddedStudent    `json:"addedStudents"`
		Errors        []EnrollmentError `json:"errors"`
	}
)
