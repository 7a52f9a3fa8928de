package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// findByEmail expects the lock to be held.
func (repo *userRepository) findByEmail(email string) (*user.User, bool) {
	for _, u := range repo.db.users {
		if u.Email == email {
			return u, true
		}
	}
	return nil, false
}

// insert expects the write lock to be held.
func (repo *userRepository) insert(usr user.User) user.User {
	usr.ID = uuid.New().String()
	usr.Roles = append([]string{}, usr.Roles...)
	repo.db.users[usr.ID] = &usr
	return usr
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.findByEmail(usr.Email); ok {
		return user.User{}, user.ErrEmailExists
	}
	return repo.insert(usr), nil
}

func (repo *userRepository) CreateUserIfNotExists(_ context.Context, usr user.User) (user.User, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if existing, ok := repo.findByEmail(usr.Email); ok {
		return *existing, false, nil
	}
	return repo.insert(usr), true, nil
}

func matchesUser(usr *user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) ||
			strings.Contains(strings.ToLower(usr.Email), s) ||
			strings.Contains(strings.ToLower(usr.ExternalID), s)) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.BatchName != "" && usr.BatchName != filter.BatchName {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if filter.IDs != nil {
		var found bool
		for _, id := range filter.IDs {
			if id == usr.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortUsers(users []user.User, orderings []core.DBOrdering) {
	sortBy(len(users), func(i, j int) { users[i], users[j] = users[j], users[i] }, withDefault(orderings),
		func(field string, i, j int) (int, bool) {
			a, b := users[i], users[j]
			switch field {
			case "name":
				return cmpStrings(a.Name, b.Name), true
			case "email":
				return cmpStrings(a.Email, b.Email), true
			case "department":
				return cmpStrings(a.Department, b.Department), true
			case "batch_name":
				return cmpStrings(a.BatchName, b.BatchName), true
			case "is_active":
				return cmpBools(a.IsActive, b.IsActive), true
			case "created_at":
				return cmpTimes(a.CreatedAt, b.CreatedAt), true
			case "updated_at":
				return cmpTimes(a.UpdatedAt, b.UpdatedAt), true
			}
			return 0, false
		})
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if matchesUser(u, filter) {
			users = append(users, *u)
		}
	}
	sortUsers(users, orderings)
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
	case filter.Email != "":
		if usr, ok := repo.findByEmail(filter.Email); ok {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save updatable fields
	origUsr, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	origUsr.Name = usr.Name
	origUsr.Department = usr.Department
	origUsr.IsActive = usr.IsActive
	if usr.Roles != nil {
		origUsr.Roles = append([]string{}, usr.Roles...)
	}
	origUsr.UpdatedAt = usr.UpdatedAt
	return *origUsr, nil
}

func (repo *userRepository) DeleteUsers(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// same effects as the foreign keys of the postgres schema
	for _, id := range ids {
		delete(repo.db.users, id)
		for _, students := range repo.db.enrollments {
			delete(students, id)
		}
		for courseID, c := range repo.db.courses {
			if c.FacultyID == id {
				delete(repo.db.courses, courseID)
				delete(repo.db.enrollments, courseID)
			}
		}
		for _, b := range repo.db.batches {
			if b.UploadedBy == id {
				b.UploadedBy = ""
			}
		}
	}
	return nil
}
