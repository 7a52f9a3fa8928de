package roster

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/academia/core"
)

// Batch is the record kept of an uploaded roster.
type Batch struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FileName      string    `json:"file_name"`
	Role          string    `json:"role"`
	UploadedBy    string    `json:"uploaded_by,omitempty"`
	CreatedCount  int       `json:"created_count"`
	ExistingCount int       `json:"existing_count"`
	RejectedCount int       `json:"rejected_count"`
	FailedCount   int       `json:"failed_count"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

type BatchFilter struct {
	Role   string `query:"role"`
	Search string `query:"search"`
}

func (bf *BatchFilter) Clean() {
	bf.Role = core.CleanString(bf.Role, true /* lower */)
	if bf.Role != "" && !strings.HasSuffix(bf.Role, ":") { // "student" -> "student:"
		bf.Role += ":"
	}
	bf.Search = core.CleanString(bf.Search)
}

type BatchRepository interface {
	CreateBatch(ctx context.Context, b Batch) (Batch, error)
	// QueryBatches applies AND operation on available BatchFilter fields.
	// BatchFilter.Search does a case-insensitive match on one of Batch.Name or Batch.FileName.
	QueryBatches(ctx context.Context, filter *BatchFilter, orderings ...core.DBOrdering) ([]Batch, error)
}
