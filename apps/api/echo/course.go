package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

var errCourseNotFoundInCtx = errors.New("course not found in echo.Context")

type courseApi struct {
	svc         course.Service
	userSvc     user.Service
	validate    *validator.Validate
	maxFileSize int64
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc course.Service,
	userSvc user.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := courseApi{
		svc:         svc,
		userSvc:     userSvc,
		validate:    validate,
		maxFileSize: conf.Upload.MaxFileSize,
	}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, facultyMiddleware(userSvc))
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve, courseMiddleware(svc, userSvc, false))

	// enrollment endpoints
	sg := cg.Group("/:id/students", courseMiddleware(svc, userSvc, true))
	sg.GET("", api.queryStudents)
	sg.POST("", api.addStudents)
	sg.POST("/upload", api.uploadStudents)
	sg.DELETE("/:studentId", api.removeStudent)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

// query lists all courses to admins, the taught courses to faculty and the joined ones to students.
func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsFaculty():
		filter.FacultyID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotFoundInCtx, "retrieving course from context")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) queryStudents(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotFoundInCtx, "retrieving course from context")
	}

	students, err := api.svc.Students(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *courseApi) addStudents(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotFoundInCtx, "retrieving course from context")
	}

	var data course.EnrollmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.AddStudents(ctx.Request().Context(), c.ID, data.Emails)
	if err != nil {
		return errors.Wrap(err, "adding students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *courseApi) uploadStudents(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotFoundInCtx, "retrieving course from context")
	}

	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return errFileRequired
	}
	content, err := readUpload(fh, api.maxFileSize)
	if err != nil {
		return err
	}

	res, err := api.svc.AddStudentsFromCSV(ctx.Request().Context(), c.ID, content)
	if err != nil {
		return errors.Wrap(err, "adding students from CSV")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *courseApi) removeStudent(ctx echo.Context) error {
	c, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return errors.Wrap(errCourseNotFoundInCtx, "retrieving course from context")
	}

	if err := api.svc.RemoveStudent(ctx.Request().Context(), c.ID, ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
