package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
)

const uploadField = "csvFile"

var errFileRequired = core.NewValidationError(nil, core.FieldError{Field: uploadField, Error: "a CSV file is required"})

type rosterApi struct {
	reconciler  *roster.Reconciler
	userSvc     user.Service
	validate    *validator.Validate
	maxFileSize int64
}

func registerRosterAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	reconciler *roster.Reconciler,
	userSvc user.Service,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := rosterApi{
		reconciler:  reconciler,
		userSvc:     userSvc,
		validate:    validate,
		maxFileSize: conf.Upload.MaxFileSize,
	}

	bg := g.Group("/batches", jwt)
	bg.GET("", api.query, facultyOrAdminMiddleware(userSvc))
	bg.POST("/students", api.upload(user.RoleStudent), adminMiddleware(userSvc))
	bg.POST("/faculty", api.upload(user.RoleFaculty), adminMiddleware(userSvc))
}

// UploadBatchRequest holds the form fields sent along the roster file.
type UploadBatchRequest struct {
	BatchName string `form:"batchName" validate:"required,notblank,label,max=255"`
}

func (ur *UploadBatchRequest) Validate(validate *validator.Validate) error {
	ur.BatchName = core.CleanString(ur.BatchName)
	return validate.Struct(ur)
}

// Handlers

func (api *rosterApi) upload(role string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		data := UploadBatchRequest{BatchName: ctx.FormValue("batchName")}
		if err := data.Validate(api.validate); err != nil {
			return err
		}

		fh, err := ctx.FormFile(uploadField)
		if err != nil {
			return errFileRequired
		}
		content, err := readUpload(fh, api.maxFileSize)
		if err != nil {
			return err
		}
		text, err := roster.DecodeUpload(content)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: "unreadable file"})
		}

		ctxUsr, err := getContextUser(ctx, api.userSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}

		rep, err := api.reconciler.Reconcile(ctx.Request().Context(), roster.BatchInput{
			FileText:   text,
			FileName:   fh.Filename,
			BatchName:  data.BatchName,
			Role:       role,
			UploadedBy: ctxUsr.ID,
		})
		if err != nil {
			return errors.Wrap(err, "reconciling batch")
		}
		return ctx.JSON(http.StatusOK, rep)
	}
}

func (api *rosterApi) query(ctx echo.Context) error {
	filter := new(roster.BatchFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []roster.Batch{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	batches, err := api.reconciler.QueryBatches(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying batches")
	}
	if batches == nil {
		batches = []roster.Batch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

// readUpload reads an uploaded file of at most maxSize bytes.
func readUpload(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	tooLarge := core.NewValidationError(nil, core.FieldError{Field: uploadField, Error: "file is too large"})
	if fh.Size > maxSize {
		return nil, tooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading uploaded file")
	}
	if int64(len(content)) > maxSize {
		return nil, tooLarge
	}
	if len(content) == 0 {
		return nil, errFileRequired
	}
	return content, nil
}
