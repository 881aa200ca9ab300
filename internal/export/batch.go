package export

import (
	"context"
	"fmt"

	"github.com/opsboard/driveexport/internal/model"
)

// ItemResult reports the outcome of one entity inside a bulk re-sync.
type ItemResult struct {
	ID          string `json:"id"`
	Success     bool   `json:"success"`
	DriveFileID string `json:"drive_file_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ExportBatch re-exports a set of entities of one type. Entities are
// processed sequentially; a failing id is reported in its result and
// does not abort the rest of the batch.
func (s *Service) ExportBatch(ctx context.Context, orgID, userID string, entityType model.EntityType, ids []string) []ItemResult {
	results := make([]ItemResult, 0, len(ids))
	for _, id := range ids {
		res, err := s.Export(ctx, orgID, userID, Request{Type: entityType, ID: id})
		if err != nil {
			fmt.Printf("export batch: %s/%s failed: %v\n", entityType, id, err)
			results = append(results, ItemResult{ID: id, Error: err.Error()})
			continue
		}
		results = append(results, ItemResult{ID: id, Success: true, DriveFileID: res.DriveFileID})
	}
	return results
}
