package course

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrAlreadyEnrolled = errors.New("already enrolled")
	ErrNotEnrolled     = errors.New("student is not enrolled in this course")
)

// enrollment messages
const (
	MsgStudentAdded   = "Student added successfully"
	MsgStudentCreated = "Student account created and added"
	MsgNotStudent     = "user is not a student"
	MsgEnrollFailed   = "could not add the student"
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// GetCourse returns the Course with its students.
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields, students are not loaded.
		QueryCourses(ctx context.Context, filter *QueryFilter, orderings ...core.DBOrdering) ([]Course, error)
		QueryStudents(ctx context.Context, courseID string) ([]user.User, error)
		// AddStudent returns ErrAlreadyEnrolled if the student is a member already.
		AddStudent(ctx context.Context, courseID, studentID string) error
		// RemoveStudent returns ErrNotEnrolled if the student is not a member.
		RemoveStudent(ctx context.Context, courseID, studentID string) error
	}

	// Accounts resolves students by email, creating their account when needed.
	Accounts interface {
		CreateIfNotExists(ctx context.Context, usr user.User) (user.User, bool, error)
		SendWelcomeMails(users ...user.User)
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse, faculty user.User) (Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Course, error)
		Students(ctx context.Context, courseID string) ([]user.User, error)
		AddStudents(ctx context.Context, courseID string, emails []string) (EnrollmentResult, error)
		AddStudentsFromCSV(ctx context.Context, courseID string, data []byte) (EnrollmentResult, error)
		RemoveStudent(ctx context.Context, courseID, studentID string) error
	}

	service struct {
		repo     Repository
		accounts Accounts
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, accounts Accounts, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:     repo,
		accounts: accounts,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, nc NewCourse, faculty user.User) (Course, error) {
	now := time.Now().UTC()
	c := Course{
		Title:       nc.Title,
		Description: nc.Description,
		Department:  nc.Department,
		FacultyID:   faculty.ID,
		Students:    []user.User{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.Department == "" {
		c.Department = faculty.Department
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryCourses(ctx, filter, core.CleanOrderings(orderings, "title", "department", "created_at", "updated_at")...)
}

// Students lists the students of a course, in enrollment order.
func (svc *service) Students(ctx context.Context, courseID string) ([]user.User, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryStudents(ctx, courseID)
}

// AddStudents enrolls the students with the given emails, creating the missing student accounts.
// Per email problems are returned as EnrollmentResult.Errors; only an unknown course fails the call.
// A cancelled ctx stops the work between emails: the students added so far are returned
// along with the error, and their mails are sent.
func (svc *service) AddStudents(ctx context.Context, courseID string, emails []string) (EnrollmentResult, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return EnrollmentResult{}, err
	}

	res := EnrollmentResult{
		AddedStudents: make([]AddedStudent, 0, len(emails)),
		Errors:        make([]EnrollmentError, 0),
	}
	var created, enrolled []user.User
	var stopErr error

	for _, raw := range emails {
		if err := ctx.Err(); err != nil {
			stopErr = errors.Wrap(err, "adding students")
			break
		}

		email := core.CleanEmail(raw)
		switch {
		case email == "":
			res.Errors = append(res.Errors, EnrollmentError{Email: raw, Message: roster.MsgEmailRequired})
			continue
		case !core.IsEmail(email):
			res.Errors = append(res.Errors, EnrollmentError{Email: raw, Message: roster.MsgEmailInvalid})
			continue
		}

		usr, isNew, err := svc.accounts.CreateIfNotExists(ctx, user.User{
			Name:       roster.NameFromEmail(email),
			Email:      email,
			Department: c.Department,
			Roles:      []string{user.RoleStudent},
		})
		if err != nil {
			svc.logger.Error("resolving student", err, core.LogFields{"course": c.ID, "email": email})
			res.Errors = append(res.Errors, EnrollmentError{Email: email, Message: roster.MsgCreationFailed})
			continue
		}
		if !isNew && !usr.IsStudent() {
			res.Errors = append(res.Errors, EnrollmentError{Email: email, Message: MsgNotStudent})
			continue
		}

		if err = svc.repo.AddStudent(ctx, c.ID, usr.ID); err != nil {
			if errors.Cause(err) == ErrAlreadyEnrolled {
				res.Errors = append(res.Errors, EnrollmentError{Email: email, Message: ErrAlreadyEnrolled.Error()})
				continue
			}
			svc.logger.Error("enrolling student", err, core.LogFields{"course": c.ID, "email": email})
			res.Errors = append(res.Errors, EnrollmentError{Email: email, Message: MsgEnrollFailed})
			continue
		}

		msg := MsgStudentAdded
		if isNew {
			msg = MsgStudentCreated
			created = append(created, usr)
		}
		enrolled = append(enrolled, usr)
		res.AddedStudents = append(res.AddedStudents, AddedStudent{Email: email, Student: usr, Message: msg})
	}

	svc.accounts.SendWelcomeMails(created...)
	svc.sendEnrolledMails(c, enrolled)
	return res, stopErr
}

// AddStudentsFromCSV enrolls the students listed in the email column of an uploaded roster.
func (svc *service) AddStudentsFromCSV(ctx context.Context, courseID string, data []byte) (EnrollmentResult, error) {
	text, err := roster.DecodeUpload(data)
	if err != nil {
		return EnrollmentResult{}, core.NewValidationError(err, core.FieldError{Field: "csvFile", Error: "unreadable file"})
	}
	emails, err := roster.ParseEmails(text)
	if err != nil {
		return EnrollmentResult{}, err
	}
	return svc.AddStudents(ctx, courseID, emails)
}

func (svc *service) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return err
	}
	return svc.repo.RemoveStudent(ctx, courseID, studentID)
}

type enrolledData struct {
	StudentName string
	CourseTitle string
}

func (svc *service) sendEnrolledMails(c Course, students []user.User) {
	if len(students) == 0 {
		return
	}
	messages := make([]*core.EmailMessage, 0, len(students))
	for _, s := range students {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: s.Name, Address: s.Email}},
			Subject:      "You have been added to " + c.Title,
			TemplateName: "enrolled",
			TemplateData: enrolledData{StudentName: s.Name, CourseTitle: c.Title},
		})
	}
	svc.mailSvc.SendMessages(messages...)
}
