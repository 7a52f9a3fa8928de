package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

var courseColumns = []string{"id", "title", "description", "department", "faculty_id", "created_at", "updated_at"}

type courseRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Department  null.String `db:"department"`
	FacultyID   string      `db:"faculty_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Department:  row.Department.String,
		FacultyID:   row.FacultyID,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo *courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	query, args, err := psql.Insert("courses").
		Columns(courseColumns...).
		Values(uuid.New().String(), c.Title, c.Description, null.NewString(c.Department, c.Department != ""),
			c.FacultyID, c.CreatedAt.UTC(), c.UpdatedAt.UTC()).
		Suffix("RETURNING " + strings.Join(courseColumns, ", ")).
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building insert course query")
	}

	var row courseRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return course.Course{}, user.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	created := row.toCourse()
	created.Students = []user.User{}
	return created, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrNotFound
	}
	query, args, err := psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building get course query")
	}

	var row courseRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "finding course")
	}
	c := row.toCourse()
	if c.Students, err = repo.QueryStudents(ctx, c.ID); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, orderings ...core.DBOrdering) ([]course.Course, error) {
	q := psql.Select(courseColumns...).From("courses")

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{sq.ILike{"title": val}, sq.ILike{"description": val}, sq.ILike{"department": val}})
		}
		// an invalid ID matches no rows: sq.Eq renders an empty list as (1=0)
		if filter.FacultyID != "" {
			q = q.Where(sq.Eq{"faculty_id": validUUIDs([]string{filter.FacultyID})})
		}
		if filter.StudentID != "" {
			sub := psql.Select("course_id").From("course_students").
				Where(sq.Eq{"student_id": validUUIDs([]string{filter.StudentID})})
			subQuery, subArgs, err := sub.PlaceholderFormat(sq.Question).ToSql()
			if err != nil {
				return nil, errors.Wrap(err, "building student courses sub-query")
			}
			q = q.Where("id IN ("+subQuery+")", subArgs...)
		}
	}
	q = orderBy(q, orderings, "", "created_at DESC")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query courses query")
	}
	var rows []courseRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) QueryStudents(ctx context.Context, courseID string) ([]user.User, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return []user.User{}, nil
	}
	query, args, err := psql.Select(prefixed("u.", userColumns)...).
		From("users u").
		Join("course_students cs ON cs.student_id = u.id").
		Where(sq.Eq{"cs.course_id": courseID}).
		OrderBy("cs.enrolled_at ASC", "u.name ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query students query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying course students")
	}
	return toUsers(rows), nil
}

func (repo *courseRepository) AddStudent(ctx context.Context, courseID, studentID string) error {
	if len(validUUIDs([]string{courseID, studentID})) != 2 {
		return course.ErrNotFound
	}
	query, args, err := psql.Insert("course_students").
		Columns("course_id", "student_id", "enrolled_at").
		Values(courseID, studentID, time.Now().UTC()).
		Suffix("ON CONFLICT (course_id, student_id) DO NOTHING").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building add student query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return course.ErrNotFound
		}
		return errors.Wrap(err, "adding student")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	if n == 0 {
		return course.ErrAlreadyEnrolled
	}
	return nil
}

func (repo *courseRepository) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	if len(validUUIDs([]string{courseID, studentID})) != 2 {
		return course.ErrNotEnrolled
	}
	query, args, err := psql.Delete("course_students").
		Where(sq.Eq{"course_id": courseID, "student_id": studentID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building remove student query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	if n == 0 {
		return course.ErrNotEnrolled
	}
	return nil
}
