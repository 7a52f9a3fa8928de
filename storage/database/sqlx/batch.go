package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
)

var batchColumns = []string{
	"id", "name", "file_name", "role", "uploaded_by",
	"created_count", "existing_count", "rejected_count", "failed_count", "created_at",
}

type batchRow struct {
	ID            string      `db:"id"`
	Name          string      `db:"name"`
	FileName      string      `db:"file_name"`
	Role          string      `db:"role"`
	UploadedBy    null.String `db:"uploaded_by"`
	CreatedCount  int         `db:"created_count"`
	ExistingCount int         `db:"existing_count"`
	RejectedCount int         `db:"rejected_count"`
	FailedCount   int         `db:"failed_count"`
	CreatedAt     time.Time   `db:"created_at"`
}

func (row batchRow) toBatch() roster.Batch {
	return roster.Batch{
		ID:            row.ID,
		Name:          row.Name,
		FileName:      row.FileName,
		Role:          row.Role,
		UploadedBy:    row.UploadedBy.String,
		CreatedCount:  row.CreatedCount,
		ExistingCount: row.ExistingCount,
		RejectedCount: row.RejectedCount,
		FailedCount:   row.FailedCount,
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

type batchRepository struct {
	db *sqlx.DB
}

var _ roster.BatchRepository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *sqlx.DB) roster.BatchRepository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) CreateBatch(ctx context.Context, b roster.Batch) (roster.Batch, error) {
	_, uidErr := uuid.Parse(b.UploadedBy)
	query, args, err := psql.Insert("batches").
		Columns(batchColumns...).
		Values(uuid.New().String(), b.Name, b.FileName, b.Role, null.NewString(b.UploadedBy, uidErr == nil),
			b.CreatedCount, b.ExistingCount, b.RejectedCount, b.FailedCount, b.CreatedAt.UTC()).
		Suffix("RETURNING " + strings.Join(batchColumns, ", ")).
		ToSql()
	if err != nil {
		return roster.Batch{}, errors.Wrap(err, "building insert batch query")
	}

	var row batchRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return roster.Batch{}, errors.Wrap(err, "inserting batch")
	}
	return row.toBatch(), nil
}

func (repo *batchRepository) QueryBatches(ctx context.Context, filter *roster.BatchFilter, orderings ...core.DBOrdering) ([]roster.Batch, error) {
	q := psql.Select(batchColumns...).From("batches")
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"file_name": val}})
		}
		if filter.Role != "" {
			q = q.Where(sq.Eq{"role": filter.Role})
		}
	}
	q = orderBy(q, orderings, "", "created_at DESC")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query batches query")
	}
	var rows []batchRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}
	batches := make([]roster.Batch, 0, len(rows))
	for _, r := range rows {
		batches = append(batches, r.toBatch())
	}
	return batches, nil
}
