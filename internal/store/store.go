// Package store persists the records the export pipeline reads and
// writes: organizations, exportable entities, document links, Drive
// integrations and Drive file references.
//
// Store is backed by DynamoDB. If the client is nil it falls back to
// in-memory maps, which is what tests and DEV_MODE use.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/opsboard/driveexport/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Tables names the DynamoDB tables the store reads and writes.
type Tables struct {
	Organizations  string
	Memberships    string
	Checklists     string
	GembaDocs      string
	DirectoryFiles string
	TextDisplays   string
	DocumentLinks  string
	Integrations   string
	DriveFileRefs  string
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Organizations:  "Organizations",
		Memberships:    "Memberships",
		Checklists:     "Checklists",
		GembaDocs:      "GembaDocs",
		DirectoryFiles: "DirectoryFiles",
		TextDisplays:   "TextDisplays",
		DocumentLinks:  "DocumentLinks",
		Integrations:   "DriveIntegrations",
		DriveFileRefs:  "DriveFileRefs",
	}
}

// Store provides row-level access to the application tables.
type Store struct {
	client *dynamodb.Client
	tables Tables

	// In-memory fallback, used when client is nil.
	mu           sync.RWMutex
	orgs         map[string]model.Organization
	memberships  map[string]model.Membership // org_id + "#" + user_id
	checklists   map[string]model.Checklist
	gembaDocs    map[string]model.GembaDoc
	dirFiles     map[string]model.DirectoryFile
	textDisplays map[string]model.TextDisplay
	links        map[string]model.DocumentLink
	integrations map[string]model.DriveIntegration // org_id
	refs         map[string]model.DriveFileRef     // org_id + "#" + RefKey
}

// New creates a Store backed by DynamoDB. Pass a nil client to get the
// in-memory fallback.
func New(client *dynamodb.Client, tables Tables) *Store {
	return &Store{
		client:       client,
		tables:       tables,
		orgs:         make(map[string]model.Organization),
		memberships:  make(map[string]model.Membership),
		checklists:   make(map[string]model.Checklist),
		gembaDocs:    make(map[string]model.GembaDoc),
		dirFiles:     make(map[string]model.DirectoryFile),
		textDisplays: make(map[string]model.TextDisplay),
		links:        make(map[string]model.DocumentLink),
		integrations: make(map[string]model.DriveIntegration),
		refs:         make(map[string]model.DriveFileRef),
	}
}

// NewMemory creates an in-memory Store for tests and DEV_MODE.
func NewMemory() *Store {
	return New(nil, DefaultTables())
}

// getByID fetches a single row keyed by "id" and unmarshals it into out.
func (s *Store) getByID(ctx context.Context, table, id string, out any) error {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to get item from %s: %w", table, err)
	}
	if res.Item == nil {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s item: %w", table, err)
	}
	return nil
}

// GetOrganization looks up an organization by id.
func (s *Store) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		org, ok := s.orgs[id]
		if !ok {
			return nil, ErrNotFound
		}
		return &org, nil
	}

	var org model.Organization
	if err := s.getByID(ctx, s.tables.Organizations, id, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// PutOrganization inserts or replaces an organization row.
func (s *Store) PutOrganization(ctx context.Context, org model.Organization) error {
	if s.client == nil {
		s.mu.Lock()
		s.orgs[org.ID] = org
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.Organizations, org)
}

// GetMembership looks up a user's membership in an organization.
func (s *Store) GetMembership(ctx context.Context, orgID, userID string) (*model.Membership, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		m, ok := s.memberships[orgID+"#"+userID]
		if !ok {
			return nil, ErrNotFound
		}
		return &m, nil
	}

	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Memberships),
		Key: map[string]types.AttributeValue{
			"org_id":  &types.AttributeValueMemberS{Value: orgID},
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if res.Item == nil {
		return nil, ErrNotFound
	}

	var m model.Membership
	if err := attributevalue.UnmarshalMap(res.Item, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal membership: %w", err)
	}
	return &m, nil
}

// PutMembership inserts or replaces a membership row.
func (s *Store) PutMembership(ctx context.Context, m model.Membership) error {
	if s.client == nil {
		s.mu.Lock()
		s.memberships[m.OrgID+"#"+m.UserID] = m
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.Memberships, m)
}

// IsOrgAdmin reports whether the user holds the admin role in the
// organization. A missing membership is simply "not admin".
func (s *Store) IsOrgAdmin(ctx context.Context, userID, orgID string) (bool, error) {
	m, err := s.GetMembership(ctx, orgID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Role == model.RoleAdmin, nil
}

func (s *Store) putItem(ctx context.Context, table string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("failed to marshal item for %s: %w", table, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item to %s: %w", table, err)
	}
	return nil
}
