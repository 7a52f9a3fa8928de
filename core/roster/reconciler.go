package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// per row messages
const (
	MsgStudentExists  = "User or student already exists."
	MsgFacultyExists  = "User or faculty already exists"
	MsgEmailRequired  = "email is required"
	MsgEmailInvalid   = "invalid email address"
	MsgLookupFailed   = "could not look the account up"
	MsgCreationFailed = "could not create the account"
)

// Accounts is the account store the Reconciler reads from and writes to.
type Accounts interface {
	AccountFinder
	CreateIfNotExists(ctx context.Context, usr user.User) (user.User, bool, error)
	SendWelcomeMails(users ...user.User)
}

type BatchInput struct {
	FileText   string // decoded file contents
	FileName   string
	BatchName  string
	Role       string // user.RoleStudent or user.RoleFaculty
	UploadedBy string // ID of the uploader, if any
}

// RowOutcome describes what happened to a single row that did not create an account.
type RowOutcome struct {
	Line    int    `json:"line"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Report partitions the rows of a batch. Every row lands in exactly one of
// Created, AlreadyExists, Rejected (no usable email) or Failed (store error).
type Report struct {
	Message       string       `json:"message"`
	Batch         Batch        `json:"batch"`
	Created       []user.User  `json:"created"`
	AlreadyExists []RowOutcome `json:"already_exists"`
	Rejected      []RowOutcome `json:"rejected"`
	Failed        []RowOutcome `json:"failed"`
}

func newReport() *Report {
	return &Report{
		Created:       make([]user.User, 0),
		AlreadyExists: make([]RowOutcome, 0),
		Rejected:      make([]RowOutcome, 0),
		Failed:        make([]RowOutcome, 0),
	}
}

func (rep *Report) summarize() {
	rep.Batch.CreatedCount = len(rep.Created)
	rep.Batch.ExistingCount = len(rep.AlreadyExists)
	rep.Batch.RejectedCount = len(rep.Rejected)
	rep.Batch.FailedCount = len(rep.Failed)
	rep.Message = fmt.Sprintf(
		"%d created, %d already existing, %d rejected, %d failed",
		rep.Batch.CreatedCount, rep.Batch.ExistingCount, rep.Batch.RejectedCount, rep.Batch.FailedCount,
	)
}

type Reconciler struct {
	accounts          Accounts
	resolver          *Resolver
	batches           BatchRepository
	logger            core.Logger
	sendWelcomeEmails bool
}

func NewReconciler(accounts Accounts, batches BatchRepository, logger core.Logger, conf *core.Config) *Reconciler {
	return &Reconciler{
		accounts:          accounts,
		resolver:          NewResolver(accounts),
		batches:           batches,
		logger:            logger,
		sendWelcomeEmails: conf.Upload.SendWelcomeEmails,
	}
}

func existsMessage(role string) string {
	if role == user.RoleFaculty {
		return MsgFacultyExists
	}
	return MsgStudentExists
}

// NameFromEmail is the default name of accounts created from an email alone.
func NameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// Reconcile creates an account for every new person of the roster.
// The whole file is parsed before anything is written: a parse error aborts the batch.
// Row failures afterwards are reported and do not stop the remaining rows.
func (rc *Reconciler) Reconcile(ctx context.Context, in BatchInput) (*Report, error) {
	in.BatchName = core.CleanString(in.BatchName)
	if in.BatchName == "" {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "batchName", Error: "this field is required"})
	}
	if in.Role != user.RoleStudent && in.Role != user.RoleFaculty {
		return nil, core.NewArgumentError("role", "must be one of student or faculty")
	}

	rows, err := Parse(in.FileText, in.BatchName)
	if err != nil {
		return nil, err
	}

	rep := newReport()
	rep.Batch = Batch{
		Name:       in.BatchName,
		FileName:   core.CleanString(in.FileName),
		Role:       in.Role,
		UploadedBy: in.UploadedBy,
		CreatedAt:  time.Now().UTC(),
	}

	for _, row := range rows {
		if err = ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "reconciling batch")
		}
		rc.reconcileRow(ctx, row, in.Role, rep)
	}
	rep.summarize()

	batch, err := rc.batches.CreateBatch(ctx, rep.Batch)
	if err != nil {
		// accounts are already created: report them anyway
		rc.logger.Error("saving batch", err, core.LogFields{"batch": rep.Batch.Name, "file": rep.Batch.FileName})
	} else {
		rep.Batch = batch
	}

	if rc.sendWelcomeEmails {
		rc.accounts.SendWelcomeMails(rep.Created...)
	}
	return rep, nil
}

func (rc *Reconciler) reconcileRow(ctx context.Context, row RosterRow, role string, rep *Report) {
	outcome := RowOutcome{Line: row.Line, Email: row.Email}

	switch {
	case row.Email == "":
		outcome.Message = MsgEmailRequired
		rep.Rejected = append(rep.Rejected, outcome)
		return
	case !core.IsEmail(row.Email):
		outcome.Message = MsgEmailInvalid
		rep.Rejected = append(rep.Rejected, outcome)
		return
	}

	res, err := rc.resolver.Resolve(ctx, row)
	if err != nil {
		rc.logger.Error("looking the account up", err, core.LogFields{"batch": row.BatchName, "line": row.Line})
		outcome.Message = MsgLookupFailed
		rep.Failed = append(rep.Failed, outcome)
		return
	}
	if res.Status == StatusExists {
		outcome.Message = existsMessage(role)
		rep.AlreadyExists = append(rep.AlreadyExists, outcome)
		return
	}

	name := row.Name
	if name == "" {
		name = NameFromEmail(row.Email)
	}
	usr, created, err := rc.accounts.CreateIfNotExists(ctx, user.User{
		Name:       name,
		Email:      row.Email,
		ExternalID: row.ExternalID,
		Department: row.Department,
		BatchName:  row.BatchName,
		Roles:      []string{role},
	})
	switch {
	case err != nil:
		rc.logger.Error("creating the account", err, core.LogFields{"batch": row.BatchName, "line": row.Line})
		outcome.Message = MsgCreationFailed
		rep.Failed = append(rep.Failed, outcome)
	case !created: // created in between by someone else
		outcome.Message = existsMessage(role)
		rep.AlreadyExists = append(rep.AlreadyExists, outcome)
	default:
		rep.Created = append(rep.Created, usr)
	}
}

// QueryBatches lists the uploaded batches.
func (rc *Reconciler) QueryBatches(ctx context.Context, filter *BatchFilter, orderings []core.DBOrdering) ([]Batch, error) {
	if filter == nil {
		filter = new(BatchFilter)
	}
	return rc.batches.QueryBatches(ctx, filter, core.CleanOrderings(orderings, "name", "file_name", "role", "created_at")...)
}
