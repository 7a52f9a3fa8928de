package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists if the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		// CreateUserIfNotExists atomically creates usr unless its email is taken,
		// in which case the existing User is returned with created == false.
		CreateUserIfNotExists(ctx context.Context, usr User) (u User, created bool, err error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Email or User.ExternalID.
		QueryUsers(ctx context.Context, filter *QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsers(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		CreateIfNotExists(ctx context.Context, usr User) (User, bool, error)
		Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		SendWelcomeMails(users ...User)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
	}
}

var orderingFields = []string{"name", "email", "department", "batch_name", "is_active", "created_at", "updated_at"}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanEmail(email)})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding user by email")
	}
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return nil
		}
	}
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:       nu.Name,
		Email:      core.CleanEmail(nu.Email),
		ExternalID: nu.ExternalID,
		Department: nu.Department,
		BatchName:  nu.BatchName,
		Roles:      nu.Roles,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, err
	}
	svc.SendWelcomeMails(usr)
	return usr, nil
}

// CreateIfNotExists creates usr unless a User with the same email exists already.
// Welcome mails are left to the caller.
func (svc *service) CreateIfNotExists(ctx context.Context, usr User) (User, bool, error) {
	now := time.Now().UTC()
	usr.Email = core.CleanEmail(usr.Email)
	usr.IsActive = true
	usr.CreatedAt = now
	usr.UpdatedAt = now
	return svc.repo.CreateUserIfNotExists(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(orderings, orderingFields...)...)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanEmail(email)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	if uu.Department != nil {
		usr.Department = *uu.Department
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsers(ctx, ids...)
}

type welcomeData struct {
	Name      string
	Email     string
	BatchName string
}

func (svc *service) SendWelcomeMails(users ...User) {
	if len(users) == 0 {
		return
	}
	messages := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Welcome to Academia",
			TemplateName: "welcome",
			TemplateData: welcomeData{Name: usr.Name, Email: usr.Email, BatchName: usr.BatchName},
		})
	}
	svc.mailSvc.SendMessages(messages...)
}
