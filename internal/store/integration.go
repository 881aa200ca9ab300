package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/opsboard/driveexport/internal/model"
)

// GetIntegration loads the organization's Drive integration row.
func (s *Store) GetIntegration(ctx context.Context, orgID string) (*model.DriveIntegration, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		integ, ok := s.integrations[orgID]
		if !ok {
			return nil, ErrNotFound
		}
		return &integ, nil
	}

	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Integrations),
		Key: map[string]types.AttributeValue{
			"org_id": &types.AttributeValueMemberS{Value: orgID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if res.Item == nil {
		return nil, ErrNotFound
	}

	var integ model.DriveIntegration
	if err := attributevalue.UnmarshalMap(res.Item, &integ); err != nil {
		return nil, fmt.Errorf("failed to unmarshal integration: %w", err)
	}
	return &integ, nil
}

// PutIntegration inserts or replaces an integration row.
func (s *Store) PutIntegration(ctx context.Context, integ model.DriveIntegration) error {
	if s.client == nil {
		s.mu.Lock()
		s.integrations[integ.OrgID] = integ
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.Integrations, integ)
}

// SaveIntegrationToken persists a freshly refreshed access token and its
// expiry without touching the rest of the row.
func (s *Store) SaveIntegrationToken(ctx context.Context, orgID, accessToken string, expiresAt time.Time) error {
	if s.client == nil {
		s.mu.Lock()
		if integ, ok := s.integrations[orgID]; ok {
			integ.AccessToken = accessToken
			exp := expiresAt
			integ.TokenExpiresAt = &exp
			integ.UpdatedAt = time.Now()
			s.integrations[orgID] = integ
		}
		s.mu.Unlock()
		return nil
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.Integrations),
		Key: map[string]types.AttributeValue{
			"org_id": &types.AttributeValueMemberS{Value: orgID},
		},
		UpdateExpression: aws.String("SET access_token = :tok, token_expires_at = :exp, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tok": &types.AttributeValueMemberS{Value: accessToken},
			":exp": &types.AttributeValueMemberS{Value: expiresAt.Format(time.RFC3339)},
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save integration token: %w", err)
	}
	return nil
}

// SaveIntegrationRootFolder caches the resolved root folder onto the
// integration row.
func (s *Store) SaveIntegrationRootFolder(ctx context.Context, orgID, folderID, folderName string) error {
	if s.client == nil {
		s.mu.Lock()
		if integ, ok := s.integrations[orgID]; ok {
			integ.RootFolderID = folderID
			integ.RootFolderName = folderName
			integ.UpdatedAt = time.Now()
			s.integrations[orgID] = integ
		}
		s.mu.Unlock()
		return nil
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.Integrations),
		Key: map[string]types.AttributeValue{
			"org_id": &types.AttributeValueMemberS{Value: orgID},
		},
		UpdateExpression: aws.String("SET root_folder_id = :fid, root_folder_name = :fname, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fid":   &types.AttributeValueMemberS{Value: folderID},
			":fname": &types.AttributeValueMemberS{Value: folderName},
			":now":   &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save root folder: %w", err)
	}
	return nil
}
