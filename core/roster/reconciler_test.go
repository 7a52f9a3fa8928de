package roster_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

var errStore = errors.New("store unavailable")

// flakyAccounts fails the lookups and creations of chosen emails.
type flakyAccounts struct {
	roster.Accounts
	failLookup map[string]bool
	failCreate map[string]bool
	raced      map[string]bool // created by someone else between lookup and creation
}

func (a *flakyAccounts) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if a.failLookup[email] {
		return user.User{}, errStore
	}
	return a.Accounts.GetByEmail(ctx, email)
}

func (a *flakyAccounts) CreateIfNotExists(ctx context.Context, usr user.User) (user.User, bool, error) {
	if a.failCreate[usr.Email] {
		return user.User{}, false, errStore
	}
	if a.raced[usr.Email] {
		return user.User{ID: "other", Email: usr.Email}, false, nil
	}
	return a.Accounts.CreateIfNotExists(ctx, usr)
}

type failingBatches struct {
	roster.BatchRepository
}

func (failingBatches) CreateBatch(context.Context, roster.Batch) (roster.Batch, error) {
	return roster.Batch{}, errStore
}

type env struct {
	conf    *core.Config
	usrRepo user.Repository
	batches roster.BatchRepository
	usrSvc  user.Service
}

func setup(t *testing.T) env {
	conf := testutil.NewConfig()
	testutil.ParseEmailTemplates(conf)
	emailsvc.ResetSentMessages()

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	return env{
		conf:    conf,
		usrRepo: usrRepo,
		batches: inmemdb.NewBatchRepository(db),
		usrSvc:  user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger(conf))),
	}
}

func (e env) reconciler(accounts roster.Accounts, batches roster.BatchRepository) *roster.Reconciler {
	return roster.NewReconciler(accounts, batches, testutil.NewLogger(e.conf), e.conf)
}

func emails(users []user.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Email)
	}
	return out
}

func TestReconciler_Reconcile(t *testing.T) {
	e := setup(t)
	existing := testutil.CreateUser(t, e.usrRepo, "Alice", "alice@x.com", []string{user.RoleStudent}, true)
	rc := e.reconciler(e.usrSvc, e.batches)

	text := "id,name,email,department\n" +
		"1,Alice,ALICE@x.com,CS\n" + // 2: exists
		"2,Bob,bob@x.com,Math\n" + // 3: new
		"3,Carl,,Math\n" + // 4: no email
		"4,Dan,not-an-email,Math\n" + // 5: invalid
		"5,,eve@x.com,\n" + // 6: new, no name
		"6,Bob again,BOB@x.com,Math\n" // 7: same file duplicate

	rep, err := rc.Reconcile(context.Background(), roster.BatchInput{
		FileText:   text,
		FileName:   "students.csv",
		BatchName:  " 2024-A ",
		Role:       user.RoleStudent,
		UploadedBy: existing.ID,
	})
	require.NoError(t, err)

	// created
	assert.Equal(t, []string{"bob@x.com", "eve@x.com"}, emails(rep.Created))
	bob := rep.Created[0]
	assert.Equal(t, "Bob", bob.Name)
	assert.Equal(t, "2", bob.ExternalID)
	assert.Equal(t, "Math", bob.Department)
	assert.Equal(t, "2024-A", bob.BatchName)
	assert.Equal(t, []string{user.RoleStudent}, bob.Roles)
	assert.True(t, bob.IsActive)
	assert.Equal(t, "eve", rep.Created[1].Name)

	assert.Equal(t, []roster.RowOutcome{
		{Line: 2, Email: "alice@x.com", Message: roster.MsgStudentExists},
		{Line: 7, Email: "bob@x.com", Message: roster.MsgStudentExists},
	}, rep.AlreadyExists)
	assert.Equal(t, []roster.RowOutcome{
		{Line: 4, Email: "", Message: roster.MsgEmailRequired},
		{Line: 5, Email: "not-an-email", Message: roster.MsgEmailInvalid},
	}, rep.Rejected)
	assert.Empty(t, rep.Failed)

	// batch record
	assert.NotEmpty(t, rep.Batch.ID)
	assert.Equal(t, "2024-A", rep.Batch.Name)
	assert.Equal(t, "students.csv", rep.Batch.FileName)
	assert.Equal(t, user.RoleStudent, rep.Batch.Role)
	assert.Equal(t, existing.ID, rep.Batch.UploadedBy)
	assert.Equal(t, 2, rep.Batch.CreatedCount)
	assert.Equal(t, 2, rep.Batch.ExistingCount)
	assert.Equal(t, 2, rep.Batch.RejectedCount)
	assert.Equal(t, 0, rep.Batch.FailedCount)
	assert.Equal(t, "2 created, 2 already existing, 2 rejected, 0 failed", rep.Message)

	// persisted
	batches, err := rc.QueryBatches(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []roster.Batch{rep.Batch}, batches)

	usr, err := e.usrSvc.GetByEmail(context.Background(), "Eve@x.com")
	require.NoError(t, err)
	assert.Equal(t, rep.Created[1], usr)

	// existing account untouched
	usr, err = e.usrSvc.GetByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, existing, usr)

	// welcome mails for the created accounts only
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "bob@x.com", sent[0].To[0].Address)
	assert.Equal(t, "eve@x.com", sent[1].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "2024-A")
}

func TestReconciler_Reconcile_faculty(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "Prof", "prof@x.com", []string{user.RoleFaculty}, true)
	rc := e.reconciler(e.usrSvc, e.batches)

	rep, err := rc.Reconcile(context.Background(), roster.BatchInput{
		FileText:  "email,name\nprof@x.com,Prof\nnew.prof@x.com,New Prof\n",
		BatchName: "Faculty 2024",
		Role:      user.RoleFaculty,
	})
	require.NoError(t, err)

	require.Len(t, rep.Created, 1)
	assert.Equal(t, []string{user.RoleFaculty}, rep.Created[0].Roles)
	assert.Equal(t, []roster.RowOutcome{{Line: 2, Email: "prof@x.com", Message: roster.MsgFacultyExists}}, rep.AlreadyExists)
	assert.Equal(t, user.RoleFaculty, rep.Batch.Role)
}

func TestReconciler_Reconcile_abortsBeforeWriting(t *testing.T) {
	tests := []struct {
		name    string
		in      roster.BatchInput
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "missing email column",
			in:   roster.BatchInput{FileText: "id,name\n1,Ann\n", BatchName: "b", Role: user.RoleStudent},
			checkFn: func(t *testing.T, err error) {
				var mcErr *roster.MissingColumnError
				require.True(t, errors.As(err, &mcErr))
				assert.Equal(t, roster.ColEmail, mcErr.Column)
			},
		},
		{
			name: "blank batch name",
			in:   roster.BatchInput{FileText: "email\nann@x.com\n", BatchName: "  ", Role: user.RoleStudent},
			checkFn: func(t *testing.T, err error) {
				vErr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok)
				assert.Equal(t, "batchName", vErr.Fields[0].Field)
			},
		},
		{
			name: "unsupported role",
			in:   roster.BatchInput{FileText: "email\nann@x.com\n", BatchName: "b", Role: user.RoleAdmin},
			checkFn: func(t *testing.T, err error) {
				_, ok := errors.Cause(err).(*core.ArgumentError)
				assert.True(t, ok)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			rc := e.reconciler(e.usrSvc, e.batches)

			rep, err := rc.Reconcile(context.Background(), tt.in)
			assert.Nil(t, rep)
			tt.checkFn(t, err)

			users, err := e.usrSvc.Query(context.Background(), nil, nil)
			require.NoError(t, err)
			assert.Empty(t, users)
			batches, err := rc.QueryBatches(context.Background(), nil, nil)
			require.NoError(t, err)
			assert.Empty(t, batches)
		})
	}
}

func TestReconciler_Reconcile_storeFailures(t *testing.T) {
	e := setup(t)
	accounts := &flakyAccounts{
		Accounts:   e.usrSvc,
		failLookup: map[string]bool{"a@x.com": true},
		failCreate: map[string]bool{"b@x.com": true},
		raced:      map[string]bool{"c@x.com": true},
	}
	rc := e.reconciler(accounts, e.batches)

	rep, err := rc.Reconcile(context.Background(), roster.BatchInput{
		FileText:  "email\na@x.com\nb@x.com\nc@x.com\nd@x.com\n",
		BatchName: "b",
		Role:      user.RoleStudent,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"d@x.com"}, emails(rep.Created))
	assert.Equal(t, []roster.RowOutcome{{Line: 4, Email: "c@x.com", Message: roster.MsgStudentExists}}, rep.AlreadyExists)
	assert.Equal(t, []roster.RowOutcome{
		{Line: 2, Email: "a@x.com", Message: roster.MsgLookupFailed},
		{Line: 3, Email: "b@x.com", Message: roster.MsgCreationFailed},
	}, rep.Failed)
	assert.Equal(t, 2, rep.Batch.FailedCount)
}

func TestReconciler_Reconcile_batchNotSaved(t *testing.T) {
	e := setup(t)
	rc := e.reconciler(e.usrSvc, failingBatches{BatchRepository: e.batches})

	rep, err := rc.Reconcile(context.Background(), roster.BatchInput{
		FileText:  "email\nann@x.com\n",
		BatchName: "b",
		Role:      user.RoleStudent,
	})
	require.NoError(t, err)
	assert.Empty(t, rep.Batch.ID)
	assert.Equal(t, []string{"ann@x.com"}, emails(rep.Created))
}

func TestReconciler_Reconcile_cancelled(t *testing.T) {
	e := setup(t)
	rc := e.reconciler(e.usrSvc, e.batches)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := rc.Reconcile(ctx, roster.BatchInput{
		FileText:  "email\nann@x.com\n",
		BatchName: "b",
		Role:      user.RoleStudent,
	})
	assert.Nil(t, rep)
	assert.Equal(t, context.Canceled, errors.Cause(err))

	users, err := e.usrSvc.Query(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestReconciler_Reconcile_withoutWelcomeMails(t *testing.T) {
	e := setup(t)
	e.conf.Upload.SendWelcomeEmails = false
	rc := e.reconciler(e.usrSvc, e.batches)

	rep, err := rc.Reconcile(context.Background(), roster.BatchInput{
		FileText:  "email\nann@x.com\n",
		BatchName: "b",
		Role:      user.RoleStudent,
	})
	require.NoError(t, err)
	assert.Len(t, rep.Created, 1)
	assert.Empty(t, emailsvc.SentMessages())
}

func TestNameFromEmail(t *testing.T) {
	assert.Equal(t, "jane.doe", roster.NameFromEmail("jane.doe@x.com"))
	assert.Equal(t, "nobody", roster.NameFromEmail("nobody"))
}
