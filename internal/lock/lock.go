// Package lock provides a per-entity mutual-exclusion scope around an
// export call, backed by a DynamoDB conditional put with a TTL so a
// crashed export cannot hold a lock forever.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/opsboard/driveexport/internal/model"
)

// DefaultTTL bounds how long a lock can outlive its export.
const DefaultTTL = 2 * time.Minute

// ErrLocked is returned when another export of the same entity is in
// flight.
var ErrLocked = errors.New("export already in progress")

// Manager acquires and releases per-entity export locks. A nil DynamoDB
// client falls back to an in-process map (tests, DEV_MODE).
type Manager struct {
	client      *dynamodb.Client
	tableName   string
	ttlDuration time.Duration

	mu   sync.Mutex
	held map[string]model.ExportLock
}

// NewManager creates a lock Manager.
func NewManager(client *dynamodb.Client, tableName string) *Manager {
	return &Manager{
		client:      client,
		tableName:   tableName,
		ttlDuration: DefaultTTL,
		held:        make(map[string]model.ExportLock),
	}
}

func lockKey(orgID string, entityType model.EntityType, entityID string) string {
	return orgID + "#" + string(entityType) + "#" + entityID
}

// Acquire takes the lock for one entity. It succeeds if no lock exists,
// the existing lock has expired, or the existing lock belongs to the
// same owner (re-entry).
func (m *Manager) Acquire(ctx context.Context, orgID string, entityType model.EntityType, entityID, ownerID string) error {
	now := time.Now().Unix()
	l := model.ExportLock{
		LockKey:   lockKey(orgID, entityType, entityID),
		OwnerID:   ownerID,
		ExpiresAt: now + int64(m.ttlDuration.Seconds()),
	}

	if m.client == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if held, ok := m.held[l.LockKey]; ok && held.ExpiresAt >= now && held.OwnerID != ownerID {
			return ErrLocked
		}
		m.held[l.LockKey] = l
		return nil
	}

	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("failed to marshal export lock: %w", err)
	}

	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      item,
		ConditionExpression: aws.String(
			"attribute_not_exists(lock_key) OR expires_at < :now OR owner_id = :owner",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
			":owner": &types.AttributeValueMemberS{Value: ownerID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrLocked
		}
		return fmt.Errorf("failed to acquire export lock: %w", err)
	}
	return nil
}

// Release frees the lock if the owner still holds it. Releasing a lock
// someone else took over (after TTL expiry) is a no-op.
func (m *Manager) Release(ctx context.Context, orgID string, entityType model.EntityType, entityID, ownerID string) error {
	key := lockKey(orgID, entityType, entityID)

	if m.client == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if held, ok := m.held[key]; ok && held.OwnerID == ownerID {
			delete(m.held, key)
		}
		return nil
	}

	_, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"lock_key": &types.AttributeValueMemberS{Value: key},
		},
		ConditionExpression: aws.String("owner_id = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: ownerID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil
		}
		return fmt.Errorf("failed to release export lock: %w", err)
	}
	return nil
}
