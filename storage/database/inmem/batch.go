package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
)

type batchRepository struct {
	db *DB
}

var _ roster.BatchRepository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *DB) roster.BatchRepository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) CreateBatch(_ context.Context, b roster.Batch) (roster.Batch, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	b.ID = uuid.New().String()
	repo.db.batches[b.ID] = &b
	return b, nil
}

func (repo *batchRepository) QueryBatches(_ context.Context, filter *roster.BatchFilter, orderings ...core.DBOrdering) ([]roster.Batch, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	batches := make([]roster.Batch, 0, len(repo.db.batches))
	for _, b := range repo.db.batches {
		if filter != nil {
			if filter.Role != "" && b.Role != filter.Role {
				continue
			}
			if s := strings.ToLower(filter.Search); s != "" &&
				!(strings.Contains(strings.ToLower(b.Name), s) || strings.Contains(strings.ToLower(b.FileName), s)) {
				continue
			}
		}
		batches = append(batches, *b)
	}
	sortBy(len(batches), func(i, j int) { batches[i], batches[j] = batches[j], batches[i] }, withDefault(orderings),
		func(field string, i, j int) (int, bool) {
			a, b := batches[i], batches[j]
			switch field {
			case "name":
				return cmpStrings(a.Name, b.Name), true
			case "file_name":
				return cmpStrings(a.FileName, b.FileName), true
			case "role":
				return cmpStrings(a.Role, b.Role), true
			case "created_at":
				return cmpTimes(a.CreatedAt, b.CreatedAt), true
			}
			return 0, false
		})
	return batches, nil
}
