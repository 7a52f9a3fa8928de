package inmemdb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

func TestUserRepository_CreateUser(t *testing.T) {
	repo := NewUserRepository(NewDB())
	ctx := context.Background()

	usr, err := repo.CreateUser(ctx, user.User{Name: "Ann", Email: "ann@x.com", Roles: []string{user.RoleStudent}})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)

	_, err = repo.CreateUser(ctx, user.User{Name: "Ann 2", Email: "ann@x.com"})
	assert.Equal(t, user.ErrEmailExists, err)

	got, err := repo.GetUser(ctx, user.GetFilter{Email: "ann@x.com"})
	require.NoError(t, err)
	assert.Equal(t, usr, got)
}

func TestUserRepository_CreateUserIfNotExists(t *testing.T) {
	repo := NewUserRepository(NewDB())
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	created := make(chan user.User, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			usr, isNew, err := repo.CreateUserIfNotExists(ctx, user.User{Name: fmt.Sprintf("Ann %d", i), Email: "ann@x.com"})
			assert.NoError(t, err)
			if isNew {
				created <- usr
			}
		}(i)
	}
	wg.Wait()
	close(created)

	assert.Len(t, created, 1, "exactly one caller creates the account")
	users, err := repo.QueryUsers(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	usr, isNew, err := repo.CreateUserIfNotExists(ctx, user.User{Name: "Other", Email: "ann@x.com"})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, users[0], usr)
}

func TestUserRepository_QueryUsers(t *testing.T) {
	repo := NewUserRepository(NewDB())
	ctx := context.Background()
	now := time.Now()
	bPtr := func(b bool) *bool { return &b }

	admin := testutil.CreateUser(t, repo, "Admin", "admin@x.com", []string{user.RoleAdmin}, true, now)
	prof := testutil.CreateUser(t, repo, "Prof", "prof@x.com", []string{user.RoleFaculty}, true, now.Add(time.Hour))
	ann := testutil.CreateUser(t, repo, "Ann", "ann@x.com", []string{user.RoleStudent}, true, now.Add(2*time.Hour))
	gone := testutil.CreateUser(t, repo, "Ben", "ben@x.com", []string{user.RoleStudent}, false, now.Add(3*time.Hour))

	// batch names are set by imports
	annBatch := ann
	annBatch.BatchName = "2024"
	repo.(*userRepository).db.users[ann.ID].BatchName = "2024"

	tests := []struct {
		name      string
		filter    *user.QueryFilter
		orderings []core.DBOrdering
		want      []user.User
	}{
		{name: "all, newest first", want: []user.User{gone, annBatch, prof, admin}},
		{name: "search", filter: &user.QueryFilter{Search: "PRO"}, want: []user.User{prof}},
		{name: "role", filter: &user.QueryFilter{Roles: []string{user.RoleStudent}}, want: []user.User{gone, annBatch}},
		{name: "roles", filter: &user.QueryFilter{Roles: []string{user.RoleAdmin, user.RoleFaculty}}, want: []user.User{prof, admin}},
		{name: "batch", filter: &user.QueryFilter{BatchName: "2024"}, want: []user.User{annBatch}},
		{name: "inactive", filter: &user.QueryFilter{IsActive: bPtr(false)}, want: []user.User{gone}},
		{name: "ids", filter: &user.QueryFilter{IDs: []string{admin.ID, ann.ID}}, want: []user.User{annBatch, admin}},
		{name: "no match", filter: &user.QueryFilter{Search: "lol"}, want: []user.User{}},
		{
			name:      "order by name",
			orderings: []core.DBOrdering{{Field: "name", Ascending: true}},
			want:      []user.User{admin, annBatch, gone, prof},
		},
		{
			name:      "order by is_active, -name",
			orderings: []core.DBOrdering{{Field: "is_active", Ascending: true}, {Field: "name", Ascending: false}},
			want:      []user.User{gone, prof, annBatch, admin},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryUsers(ctx, tt.filter, tt.orderings...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserRepository_UpdateUser(t *testing.T) {
	repo := NewUserRepository(NewDB())
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Ann", "ann@x.com", []string{user.RoleStudent}, true)

	upd := usr
	upd.Name = "Ann B."
	upd.Email = "changed@x.com" // not updatable
	upd.Department = "Art"
	upd.IsActive = false
	upd.Roles = []string{user.RoleFaculty}

	got, err := repo.UpdateUser(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", got.Name)
	assert.Equal(t, "ann@x.com", got.Email)
	assert.Equal(t, "Art", got.Department)
	assert.False(t, got.IsActive)
	assert.Equal(t, []string{user.RoleFaculty}, got.Roles)

	_, err = repo.UpdateUser(ctx, user.User{ID: "unknown"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUserRepository_DeleteUsers(t *testing.T) {
	db := NewDB()
	repo := NewUserRepository(db)
	courses := NewCourseRepository(db)
	ctx := context.Background()

	prof := testutil.CreateUser(t, repo, "Prof", "prof@x.com", []string{user.RoleFaculty}, true)
	ann := testutil.CreateUser(t, repo, "Ann", "ann@x.com", []string{user.RoleStudent}, true)
	ben := testutil.CreateUser(t, repo, "Ben", "ben@x.com", []string{user.RoleStudent}, true)

	c := createCourse(t, courses, prof, "Algorithms", time.Now())
	require.NoError(t, courses.AddStudent(ctx, c.ID, ann.ID))
	require.NoError(t, courses.AddStudent(ctx, c.ID, ben.ID))

	require.NoError(t, repo.DeleteUsers(ctx, ann.ID, "unknown"))

	_, err := repo.GetUser(ctx, user.GetFilter{ID: ann.ID})
	assert.Equal(t, user.ErrNotFound, err)
	students, err := courses.QueryStudents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []user.User{ben}, students)
}
