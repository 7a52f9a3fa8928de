package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
)

// DB is a map backed store. One lock guards every table.
type DB struct {
	mutex       sync.RWMutex
	users       map[string]*user.User
	courses     map[string]*course.Course
	enrollments map[string]map[string]uint64 // {courseID: {studentID: enrollment sequence}}
	batches     map[string]*roster.Batch
	enrollSeq   uint64
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		enrollments: make(map[string]map[string]uint64),
		batches:     make(map[string]*roster.Batch),
	}
}

var _ core.DB = (*DB)(nil)

func (db *DB) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// Close drops the data.
func (db *DB) Close() error {
	db.Reset()
	return nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.enrollments = make(map[string]map[string]uint64)
	db.enrollSeq = 0
	db.batches = make(map[string]*roster.Batch)
}

func cmpStrings(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) }

func cmpTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func cmpBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// sortBy sorts n items by the orderings, using cmp to compare a field of two items.
// Unknown fields are ignored.
func sortBy(n int, swap func(i, j int), orderings []core.DBOrdering, cmp func(field string, i, j int) (int, bool)) {
	s := &sorter{n: n, swap: swap}
	s.less = func(i, j int) bool {
		for _, ord := range orderings {
			c, ok := cmp(ord.Field, i, j)
			if !ok || c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}
	sort.Stable(s)
}

type sorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (s *sorter) Len() int           { return s.n }
func (s *sorter) Swap(i, j int)      { s.swap(i, j) }
func (s *sorter) Less(i, j int) bool { return s.less(i, j) }

func withDefault(orderings []core.DBOrdering) []core.DBOrdering {
	if len(orderings) == 0 {
		return []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return orderings
}
