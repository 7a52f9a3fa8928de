package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

type courseEnv struct {
	admin, prof, other, ann, ben user.User
	algo, dbs                    course.Course
}

func setupCourses(t *testing.T) courseEnv {
	resetDB()
	ctx := context.Background()

	e := courseEnv{
		admin: testutil.CreateUser(t, usrRepo, "Admin", "admin@x.com", []string{user.RoleAdmin}, true),
		prof:  testutil.CreateUser(t, usrRepo, "Prof", "prof@x.com", []string{user.RoleFaculty}, true),
		other: testutil.CreateUser(t, usrRepo, "Other", "other@x.com", []string{user.RoleFaculty}, true),
		ann:   testutil.CreateUser(t, usrRepo, "Ann", "ann@x.com", []string{user.RoleStudent}, true),
		ben:   testutil.CreateUser(t, usrRepo, "Ben", "ben@x.com", []string{user.RoleStudent}, true),
	}

	var err error
	e.algo, err = courseSvc.Create(ctx, course.NewCourse{Title: "Algorithms"}, e.prof)
	require.NoError(t, err)
	e.dbs, err = courseSvc.Create(ctx, course.NewCourse{Title: "Databases"}, e.other)
	require.NoError(t, err)

	_, err = courseSvc.AddStudents(ctx, e.algo.ID, []string{e.ann.Email})
	require.NoError(t, err)
	e.algo, err = courseSvc.GetByID(ctx, e.algo.ID)
	require.NoError(t, err)
	return e
}

// listed drops the students, which course lists do not load.
func listed(c course.Course) course.Course {
	c.Students = nil
	return c
}

func Test_courseApi(t *testing.T) {
	e := setupCourses(t)
	adminToken := getToken(t, e.admin)
	profToken := getToken(t, e.prof)
	annToken := getToken(t, e.ann)
	benToken := getToken(t, e.ben)
	notFound := marchallObj(t, errNotFound)

	runHTTPTests(t, []httpTest{
		{name: "Auth required", path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		// query
		{name: "admin sees all", path: "/v1/courses?ordering=title", token: adminToken, wantData: marchallList(t, listed(e.algo), listed(e.dbs))},
		{name: "faculty sees taught", path: "/v1/courses", token: profToken, wantData: marchallList(t, listed(e.algo))},
		{name: "student sees joined", path: "/v1/courses", token: annToken, wantData: marchallList(t, listed(e.algo))},
		{name: "student without course", path: "/v1/courses", token: benToken, wantData: marchallList(t)},
		{name: "search", path: "/v1/courses?search=BASE", token: adminToken, wantData: marchallList(t, listed(e.dbs))},
		// retrieve
		{name: "retrieve (faculty)", path: "/v1/courses/" + e.algo.ID, token: profToken, wantData: marchallObj(t, e.algo)},
		{name: "retrieve (enrolled)", path: "/v1/courses/" + e.algo.ID, token: annToken, wantData: marchallObj(t, e.algo)},
		{name: "retrieve (not enrolled)", path: "/v1/courses/" + e.algo.ID, token: benToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "retrieve (other faculty)", path: "/v1/courses/" + e.dbs.ID, token: profToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "retrieve (unknown)", path: "/v1/courses/unknown", token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		// students
		{name: "students", path: "/v1/courses/" + e.algo.ID + "/students", token: profToken, wantData: marchallList(t, e.ann)},
		{
			name: "students (enrolled student)", path: "/v1/courses/" + e.algo.ID + "/students", token: annToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	})
}

func Test_courseApi_create(t *testing.T) {
	e := setupCourses(t)

	runHTTPTests(t, []httpTest{
		{
			name: "faculty only", method: http.MethodPost, path: "/v1/courses", token: getToken(t, e.ann),
			body: []byte(`{"title": "Art"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "title required", method: http.MethodPost, path: "/v1/courses", token: getToken(t, e.prof),
			body: []byte(`{"title": ""}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, e.prof), []byte(`{"title": " Art ", "description": "Paintings"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var c course.Course
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Art", c.Title)
	assert.Equal(t, e.prof.ID, c.FacultyID)
	assert.Empty(t, c.Students)
}

func Test_courseApi_addStudents(t *testing.T) {
	e := setupCourses(t)
	path := "/v1/courses/" + e.algo.ID + "/students"

	runHTTPTests(t, []httpTest{
		{
			name: "emails required", method: http.MethodPost, path: path, token: getToken(t, e.prof),
			body: []byte(`{"emails": []}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "other faculty", method: http.MethodPost, path: path, token: getToken(t, e.other),
			body: []byte(`{"emails": ["ben@x.com"]}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/courses/unknown/students", token: getToken(t, e.admin),
			body: []byte(`{"emails": ["ben@x.com"]}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	})

	body := []byte(`{"emails": ["BEN@x.com", "ann@x.com", "new@x.com", "other@x.com", "nope"]}`)
	req, rec := newAuthRequest(http.MethodPost, path, getToken(t, e.prof), body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res course.EnrollmentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.AddedStudents, 2)
	assert.Equal(t, "ben@x.com", res.AddedStudents[0].Email)
	assert.Equal(t, e.ben.ID, res.AddedStudents[0].Student.ID)
	assert.Equal(t, course.MsgStudentAdded, res.AddedStudents[0].Message)
	assert.Equal(t, "new@x.com", res.AddedStudents[1].Email)
	assert.Equal(t, course.MsgStudentCreated, res.AddedStudents[1].Message)
	assert.Equal(t, []course.EnrollmentError{
		{Email: "ann@x.com", Message: "already enrolled"},
		{Email: "other@x.com", Message: course.MsgNotStudent},
		{Email: "nope", Message: "invalid email address"},
	}, res.Errors)

	students, err := courseSvc.Students(context.Background(), e.algo.ID)
	require.NoError(t, err)
	assert.Len(t, students, 3)
}

func Test_courseApi_uploadStudents(t *testing.T) {
	e := setupCourses(t)
	path := "/v1/courses/" + e.algo.ID + "/students/upload"

	req, rec := newUploadRequest(t, path, getToken(t, e.prof), "class.csv", []byte("Name\nBen\n"), nil)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: `missing required column "email"`}),
	}, rec)

	req, rec = newUploadRequest(t, path, getToken(t, e.prof), "class.csv", []byte("Email\nben@x.com\nann@x.com\n\nben@x.com\n"), nil)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res course.EnrollmentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.AddedStudents, 1)
	assert.Equal(t, e.ben.ID, res.AddedStudents[0].Student.ID)
	assert.Equal(t, []course.EnrollmentError{{Email: "ann@x.com", Message: "already enrolled"}}, res.Errors)
}

func Test_courseApi_removeStudent(t *testing.T) {
	e := setupCourses(t)
	path := func(c course.Course, studentID string) string {
		return "/v1/courses/" + c.ID + "/students/" + studentID
	}

	runHTTPTests(t, []httpTest{
		{
			name: "enrolled student cannot remove", method: http.MethodDelete, path: path(e.algo, e.ann.ID), token: getToken(t, e.ann),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "not enrolled", method: http.MethodDelete, path: path(e.algo, e.ben.ID), token: getToken(t, e.prof),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: course.ErrNotEnrolled.Error()}),
		},
		{name: "removed", method: http.MethodDelete, path: path(e.algo, e.ann.ID), token: getToken(t, e.prof), wantCode: http.StatusNoContent},
		{
			name: "removed already", method: http.MethodDelete, path: path(e.algo, e.ann.ID), token: getToken(t, e.admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: course.ErrNotEnrolled.Error()}),
		},
	})

	// the account is kept
	_, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: e.ann.ID})
	assert.NoError(t, err)
}
