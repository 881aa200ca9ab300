package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/opsboard/driveexport/internal/model"
)

// GetChecklist loads a checklist by id, scoped to the organization.
func (s *Store) GetChecklist(ctx context.Context, orgID, id string) (*model.Checklist, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		c, ok := s.checklists[id]
		if !ok || c.OrgID != orgID {
			return nil, ErrNotFound
		}
		return &c, nil
	}

	var c model.Checklist
	if err := s.getByID(ctx, s.tables.Checklists, id, &c); err != nil {
		return nil, err
	}
	if c.OrgID != orgID {
		return nil, ErrNotFound
	}
	return &c, nil
}

// PutChecklist inserts or replaces a checklist row.
func (s *Store) PutChecklist(ctx context.Context, c model.Checklist) error {
	if s.client == nil {
		s.mu.Lock()
		s.checklists[c.ID] = c
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.Checklists, c)
}

// GetGembaDoc loads a gemba document by id, scoped to the organization.
func (s *Store) GetGembaDoc(ctx context.Context, orgID, id string) (*model.GembaDoc, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		g, ok := s.gembaDocs[id]
		if !ok || g.OrgID != orgID {
			return nil, ErrNotFound
		}
		return &g, nil
	}

	var g model.GembaDoc
	if err := s.getByID(ctx, s.tables.GembaDocs, id, &g); err != nil {
		return nil, err
	}
	if g.OrgID != orgID {
		return nil, ErrNotFound
	}
	return &g, nil
}

// PutGembaDoc inserts or replaces a gemba document row.
func (s *Store) PutGembaDoc(ctx context.Context, g model.GembaDoc) error {
	if s.client == nil {
		s.mu.Lock()
		s.gembaDocs[g.ID] = g
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.GembaDocs, g)
}

// GetDirectoryFile loads an uploaded file record by id, scoped to the
// organization.
func (s *Store) GetDirectoryFile(ctx context.Context, orgID, id string) (*model.DirectoryFile, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		f, ok := s.dirFiles[id]
		if !ok || f.OrgID != orgID {
			return nil, ErrNotFound
		}
		return &f, nil
	}

	var f model.DirectoryFile
	if err := s.getByID(ctx, s.tables.DirectoryFiles, id, &f); err != nil {
		return nil, err
	}
	if f.OrgID != orgID {
		return nil, ErrNotFound
	}
	return &f, nil
}

// PutDirectoryFile inserts or replaces a directory file row.
func (s *Store) PutDirectoryFile(ctx context.Context, f model.DirectoryFile) error {
	if s.client == nil {
		s.mu.Lock()
		s.dirFiles[f.ID] = f
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.DirectoryFiles, f)
}

// GetTextDisplay loads a text record by id, scoped to the organization.
func (s *Store) GetTextDisplay(ctx context.Context, orgID, id string) (*model.TextDisplay, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		t, ok := s.textDisplays[id]
		if !ok || t.OrgID != orgID {
			return nil, ErrNotFound
		}
		return &t, nil
	}

	var t model.TextDisplay
	if err := s.getByID(ctx, s.tables.TextDisplays, id, &t); err != nil {
		return nil, err
	}
	if t.OrgID != orgID {
		return nil, ErrNotFound
	}
	return &t, nil
}

// PutTextDisplay inserts or replaces a text record row.
func (s *Store) PutTextDisplay(ctx context.Context, t model.TextDisplay) error {
	if s.client == nil {
		s.mu.Lock()
		s.textDisplays[t.ID] = t
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.TextDisplays, t)
}

// LatestDocumentLink returns the most recently created, non-archived
// document link for the menu item and document type, or ErrNotFound.
func (s *Store) LatestDocumentLink(ctx context.Context, orgID, menuItemID string, docType model.EntityType) (*model.DocumentLink, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		var best *model.DocumentLink
		for _, l := range s.links {
			if l.OrgID != orgID || l.MenuItemID != menuItemID || l.DocType != docType || l.Archived {
				continue
			}
			if best == nil || l.CreatedAt.After(best.CreatedAt) {
				cp := l
				best = &cp
			}
		}
		if best == nil {
			return nil, ErrNotFound
		}
		return best, nil
	}

	// menu_item_id-index: partition menu_item_id, sort created_at.
	res, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.DocumentLinks),
		IndexName:              aws.String("menu_item_id-index"),
		KeyConditionExpression: aws.String("menu_item_id = :mid"),
		FilterExpression:       aws.String("org_id = :org AND doc_type = :dt AND archived = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":mid": &types.AttributeValueMemberS{Value: menuItemID},
			":org": &types.AttributeValueMemberS{Value: orgID},
			":dt":  &types.AttributeValueMemberS{Value: string(docType)},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query document links: %w", err)
	}
	if len(res.Items) == 0 {
		return nil, ErrNotFound
	}

	var link model.DocumentLink
	if err := attributevalue.UnmarshalMap(res.Items[0], &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document link: %w", err)
	}
	return &link, nil
}

// PutDocumentLink inserts or replaces a document link row.
func (s *Store) PutDocumentLink(ctx context.Context, l model.DocumentLink) error {
	if s.client == nil {
		s.mu.Lock()
		s.links[l.ID] = l
		s.mu.Unlock()
		return nil
	}
	return s.putItem(ctx, s.tables.DocumentLinks, l)
}
