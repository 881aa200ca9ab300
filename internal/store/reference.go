package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/opsboard/driveexport/internal/model"
)

// GetReference loads the Drive file reference for an entity, keyed by
// the caller-supplied id.
func (s *Store) GetReference(ctx context.Context, orgID string, entityType model.EntityType, entityID string) (*model.DriveFileRef, error) {
	refKey := model.RefKey(entityType, entityID)

	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		ref, ok := s.refs[orgID+"#"+refKey]
		if !ok {
			return nil, ErrNotFound
		}
		return &ref, nil
	}

	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.DriveFileRefs),
		Key: map[string]types.AttributeValue{
			"org_id":  &types.AttributeValueMemberS{Value: orgID},
			"ref_key": &types.AttributeValueMemberS{Value: refKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get drive file reference: %w", err)
	}
	if res.Item == nil {
		return nil, ErrNotFound
	}

	var ref model.DriveFileRef
	if err := attributevalue.UnmarshalMap(res.Item, &ref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal drive file reference: %w", err)
	}
	return &ref, nil
}

// UpsertReference records a successful export. The row is keyed by the
// caller-supplied id, so re-export updates in place and the key schema
// itself enforces at-most-one-row-per-entity. If an earlier write left a
// row keyed by the resolved document id instead, that stale row is
// removed and its place taken by the caller-keyed one.
func (s *Store) UpsertReference(ctx context.Context, orgID string, entityType model.EntityType, callerID, resolvedID, driveFileID, driveFolderID string) (*model.DriveFileRef, error) {
	now := time.Now()
	refKey := model.RefKey(entityType, callerID)

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()

		key := orgID + "#" + refKey
		ref, ok := s.refs[key]
		if !ok && resolvedID != "" && resolvedID != callerID {
			staleKey := orgID + "#" + model.RefKey(entityType, resolvedID)
			if stale, found := s.refs[staleKey]; found {
				ref, ok = stale, true
				delete(s.refs, staleKey)
			}
		}
		if !ok {
			ref = model.DriveFileRef{
				ID:         uuid.NewString(),
				OrgID:      orgID,
				EntityType: entityType,
			}
		}
		ref.EntityID = callerID
		ref.DriveFileID = driveFileID
		ref.DriveFolderID = driveFolderID
		ref.LastSyncedAt = now
		s.refs[key] = ref
		return &ref, nil
	}

	// Self-healing: drop a stale row keyed by the resolved id if the
	// caller-keyed row does not exist yet.
	if resolvedID != "" && resolvedID != callerID {
		if _, err := s.GetReference(ctx, orgID, entityType, callerID); errors.Is(err, ErrNotFound) {
			staleKey := model.RefKey(entityType, resolvedID)
			if _, err := s.GetReference(ctx, orgID, entityType, resolvedID); err == nil {
				_, derr := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
					TableName: aws.String(s.tables.DriveFileRefs),
					Key: map[string]types.AttributeValue{
						"org_id":  &types.AttributeValueMemberS{Value: orgID},
						"ref_key": &types.AttributeValueMemberS{Value: staleKey},
					},
				})
				if derr != nil {
					return nil, fmt.Errorf("failed to delete stale reference: %w", derr)
				}
			}
		}
	}

	res, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.DriveFileRefs),
		Key: map[string]types.AttributeValue{
			"org_id":  &types.AttributeValueMemberS{Value: orgID},
			"ref_key": &types.AttributeValueMemberS{Value: refKey},
		},
		UpdateExpression: aws.String(
			"SET id = if_not_exists(id, :newid), entity_type = :et, entity_id = :eid, drive_file_id = :dfid, drive_folder_id = :dfold, last_synced_at = :now",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":newid": &types.AttributeValueMemberS{Value: uuid.NewString()},
			":et":    &types.AttributeValueMemberS{Value: string(entityType)},
			":eid":   &types.AttributeValueMemberS{Value: callerID},
			":dfid":  &types.AttributeValueMemberS{Value: driveFileID},
			":dfold": &types.AttributeValueMemberS{Value: driveFolderID},
			":now":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert drive file reference: %w", err)
	}

	var ref model.DriveFileRef
	if err := attributevalue.UnmarshalMap(res.Attributes, &ref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upserted reference: %w", err)
	}
	return &ref, nil
}
