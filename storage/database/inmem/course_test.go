package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

func createCourse(t *testing.T, repo course.Repository, faculty user.User, title string, createdAt time.Time) course.Course {
	t.Helper()
	c, err := repo.CreateCourse(context.Background(), course.Course{
		Title:     title,
		FacultyID: faculty.ID,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	})
	require.NoError(t, err)
	return c
}

func TestCourseRepository_enrollment(t *testing.T) {
	db := NewDB()
	users := NewUserRepository(db)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	prof := testutil.CreateUser(t, users, "Prof", "prof@x.com", []string{user.RoleFaculty}, true)
	ann := testutil.CreateUser(t, users, "Ann", "ann@x.com", []string{user.RoleStudent}, true)
	ben := testutil.CreateUser(t, users, "Ben", "ben@x.com", []string{user.RoleStudent}, true)
	c := createCourse(t, repo, prof, "Algorithms", time.Now())
	assert.Equal(t, []user.User{}, c.Students)

	_, err := repo.CreateCourse(ctx, course.Course{Title: "Ghost", FacultyID: "unknown"})
	assert.Equal(t, user.ErrNotFound, err)

	tests := []struct {
		name      string
		courseID  string
		studentID string
		wantErr   error
	}{
		{name: "add ann", courseID: c.ID, studentID: ann.ID},
		{name: "add ben", courseID: c.ID, studentID: ben.ID},
		{name: "add ann again", courseID: c.ID, studentID: ann.ID, wantErr: course.ErrAlreadyEnrolled},
		{name: "unknown course", courseID: "unknown", studentID: ann.ID, wantErr: course.ErrNotFound},
		{name: "unknown student", courseID: c.ID, studentID: "unknown", wantErr: course.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, repo.AddStudent(ctx, tt.courseID, tt.studentID))
		})
	}

	got, err := repo.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Students, 2)
	assert.True(t, got.HasStudent(ann.ID))
	assert.True(t, got.HasStudent(ben.ID))

	assert.NoError(t, repo.RemoveStudent(ctx, c.ID, ann.ID))
	assert.Equal(t, course.ErrNotEnrolled, repo.RemoveStudent(ctx, c.ID, ann.ID))
	assert.Equal(t, course.ErrNotEnrolled, repo.RemoveStudent(ctx, "unknown", ben.ID))

	students, err := repo.QueryStudents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []user.User{ben}, students)

	_, err = repo.GetCourse(ctx, "unknown")
	assert.Equal(t, course.ErrNotFound, err)
}

func TestCourseRepository_enrollmentOrder(t *testing.T) {
	db := NewDB()
	users := NewUserRepository(db)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	prof := testutil.CreateUser(t, users, "Prof", "prof@x.com", []string{user.RoleFaculty}, true)
	c := createCourse(t, repo, prof, "Algorithms", time.Now())

	// enrolled in quick succession, against name order
	var want []user.User
	for _, name := range []string{"Zed", "Yan", "Amy", "Bob"} {
		usr := testutil.CreateUser(t, users, name, name+"@x.com", []string{user.RoleStudent}, true)
		require.NoError(t, repo.AddStudent(ctx, c.ID, usr.ID))
		want = append(want, usr)
	}

	students, err := repo.QueryStudents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, want, students)

	// re-enrolling puts the student last
	require.NoError(t, repo.RemoveStudent(ctx, c.ID, want[0].ID))
	require.NoError(t, repo.AddStudent(ctx, c.ID, want[0].ID))
	students, err = repo.QueryStudents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []user.User{want[1], want[2], want[3], want[0]}, students)
}

func TestUserRepository_DeleteUsers_cascade(t *testing.T) {
	db := NewDB()
	users := NewUserRepository(db)
	courses := NewCourseRepository(db)
	batches := NewBatchRepository(db)
	ctx := context.Background()

	prof := testutil.CreateUser(t, users, "Prof", "prof@x.com", []string{user.RoleFaculty}, true)
	other := testutil.CreateUser(t, users, "Other", "other@x.com", []string{user.RoleFaculty}, true)
	ann := testutil.CreateUser(t, users, "Ann", "ann@x.com", []string{user.RoleStudent}, true)
	algo := createCourse(t, courses, prof, "Algorithms", time.Now())
	dbs := createCourse(t, courses, other, "Databases", time.Now())
	require.NoError(t, courses.AddStudent(ctx, algo.ID, ann.ID))
	require.NoError(t, courses.AddStudent(ctx, dbs.ID, ann.ID))

	batch, err := batches.CreateBatch(ctx, roster.Batch{Name: "Staff", Role: user.RoleFaculty, UploadedBy: prof.ID, CreatedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, users.DeleteUsers(ctx, prof.ID))

	// taught courses go with their faculty
	_, err = courses.GetCourse(ctx, algo.ID)
	assert.Equal(t, course.ErrNotFound, err)
	assert.Equal(t, course.ErrNotFound, courses.AddStudent(ctx, algo.ID, ann.ID))
	taught, err := courses.QueryCourses(ctx, &course.QueryFilter{StudentID: ann.ID})
	require.NoError(t, err)
	require.Len(t, taught, 1)
	assert.Equal(t, dbs.ID, taught[0].ID)

	// batches stay, without uploader
	found, err := batches.QueryBatches(ctx, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, batch.ID, found[0].ID)
	assert.Empty(t, found[0].UploadedBy)

	// students leave their courses
	require.NoError(t, users.DeleteUsers(ctx, ann.ID))
	students, err := courses.QueryStudents(ctx, dbs.ID)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestCourseRepository_QueryCourses(t *testing.T) {
	db := NewDB()
	users := NewUserRepository(db)
	repo := NewCourseRepository(db)
	ctx := context.Background()
	now := time.Now()

	prof := testutil.CreateUser(t, users, "Prof", "prof@x.com", []string{user.RoleFaculty}, true)
	other := testutil.CreateUser(t, users, "Other", "other@x.com", []string{user.RoleFaculty}, true)
	ann := testutil.CreateUser(t, users, "Ann", "ann@x.com", []string{user.RoleStudent}, true)

	algo := createCourse(t, repo, prof, "Algorithms", now)
	dbs := createCourse(t, repo, other, "Databases", now.Add(time.Hour))
	art := createCourse(t, repo, prof, "Art history", now.Add(2*time.Hour))
	require.NoError(t, repo.AddStudent(ctx, dbs.ID, ann.ID))

	titles := func(courses []course.Course) []string {
		out := make([]string, 0, len(courses))
		for _, c := range courses {
			out = append(out, c.Title)
		}
		return out
	}

	tests := []struct {
		name      string
		filter    *course.QueryFilter
		orderings []core.DBOrdering
		want      []string
	}{
		{name: "all, newest first", want: []string{art.Title, dbs.Title, algo.Title}},
		{name: "by faculty", filter: &course.QueryFilter{FacultyID: prof.ID}, want: []string{art.Title, algo.Title}},
		{name: "by student", filter: &course.QueryFilter{StudentID: ann.ID}, want: []string{dbs.Title}},
		{name: "search", filter: &course.QueryFilter{Search: "HIST"}, want: []string{art.Title}},
		{name: "by title", orderings: []core.DBOrdering{{Field: "title", Ascending: true}}, want: []string{algo.Title, art.Title, dbs.Title}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryCourses(ctx, tt.filter, tt.orderings...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestBatchRepository(t *testing.T) {
	repo := NewBatchRepository(NewDB())
	ctx := context.Background()
	now := time.Now().UTC()

	students, err := repo.CreateBatch(ctx, roster.Batch{Name: "2024-A", FileName: "a.csv", Role: user.RoleStudent, CreatedAt: now})
	require.NoError(t, err)
	assert.NotEmpty(t, students.ID)
	faculty, err := repo.CreateBatch(ctx, roster.Batch{Name: "Staff", FileName: "staff.csv", Role: user.RoleFaculty, CreatedAt: now.Add(time.Minute)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter *roster.BatchFilter
		want   []roster.Batch
	}{
		{name: "all, newest first", want: []roster.Batch{faculty, students}},
		{name: "by role", filter: &roster.BatchFilter{Role: user.RoleStudent}, want: []roster.Batch{students}},
		{name: "search file name", filter: &roster.BatchFilter{Search: "STAFF.csv"}, want: []roster.Batch{faculty}},
		{name: "no match", filter: &roster.BatchFilter{Search: "lol"}, want: []roster.Batch{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryBatches(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
