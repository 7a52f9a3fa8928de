package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var userColumns = []string{
	"id", "name", "email", "external_id", "department", "batch_name", "roles", "is_active", "created_at", "updated_at",
}

type userRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Email      string         `db:"email"`
	ExternalID null.String    `db:"external_id"`
	Department null.String    `db:"department"`
	BatchName  null.String    `db:"batch_name"`
	Roles      pq.StringArray `db:"roles"`
	IsActive   bool           `db:"is_active"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:         usr.ID,
		Name:       usr.Name,
		Email:      usr.Email,
		ExternalID: null.NewString(usr.ExternalID, usr.ExternalID != ""),
		Department: null.NewString(usr.Department, usr.Department != ""),
		BatchName:  null.NewString(usr.BatchName, usr.BatchName != ""),
		Roles:      roles,
		IsActive:   usr.IsActive,
		CreatedAt:  usr.CreatedAt.UTC(),
		UpdatedAt:  usr.UpdatedAt.UTC(),
	}
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:         row.ID,
		Name:       row.Name,
		Email:      row.Email,
		ExternalID: row.ExternalID.String,
		Department: row.Department.String,
		BatchName:  row.BatchName.String,
		Roles:      []string(row.Roles),
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo *userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) insert(usr user.User) sq.InsertBuilder {
	row := toUserRow(usr)
	return psql.Insert("users").
		Columns(userColumns...).
		Values(uuid.New().String(), row.Name, row.Email, row.ExternalID, row.Department, row.BatchName,
			row.Roles, row.IsActive, row.CreatedAt, row.UpdatedAt)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query, args, err := repo.insert(usr).Suffix("RETURNING " + strings.Join(userColumns, ", ")).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building insert user query")
	}

	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) CreateUserIfNotExists(ctx context.Context, usr user.User) (user.User, bool, error) {
	query, args, err := repo.insert(usr).
		Suffix("ON CONFLICT (email) DO NOTHING RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return user.User{}, false, errors.Wrap(err, "building insert user query")
	}

	var row userRow
	err = repo.db.GetContext(ctx, &row, query, args...)
	switch {
	case err == nil:
		return row.toUser(), true, nil
	case err == sql.ErrNoRows: // email taken
		existing, err := repo.GetUser(ctx, user.GetFilter{Email: usr.Email})
		if err != nil {
			return user.User{}, false, errors.Wrap(err, "finding existing user")
		}
		return existing, false, nil
	default:
		return user.User{}, false, errors.Wrap(err, "inserting user")
	}
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	q := psql.Select(userColumns...).From("users")

	if filter != nil {
		// users with Name, Email or ExternalID matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{
				sq.ILike{"name": val},
				sq.ILike{"email": val},
				sq.ILike{"external_id": val},
			})
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make(sq.Or, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, sq.Expr("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ?)", role+"%"))
			}
			q = q.Where(roleConds)
		}
		if filter.BatchName != "" {
			q = q.Where(sq.Eq{"batch_name": filter.BatchName})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if filter.IDs != nil {
			q = q.Where(sq.Eq{"id": validUUIDs(filter.IDs)})
		}
	}
	q = orderBy(q, orderings, "", "created_at DESC")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query users query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := psql.Select(userColumns...).From("users").Limit(1)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	default:
		return user.User{}, user.ErrNotFound
	}

	query, args, err := q.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building get user query")
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := uuid.Parse(usr.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}
	row := toUserRow(usr)
	query, args, err := psql.Update("users").
		SetMap(map[string]interface{}{
			"name":       row.Name,
			"department": row.Department,
			"roles":      row.Roles,
			"is_active":  row.IsActive,
			"updated_at": row.UpdatedAt,
		}).
		Where(sq.Eq{"id": usr.ID}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building update user query")
	}

	var updated userRow
	if err = repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return updated.toUser(), nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete("users").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building delete users query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
