package model

import (
	"fmt"
	"time"
)

// EntityType identifies one of the exportable document categories.
// The set is closed: dispatch on it is an exhaustive switch, and adding
// a category is a compile-time-visible change.
type EntityType string

const (
	EntityChecklist     EntityType = "checklist"
	EntityGembaDoc      EntityType = "gemba_doc"
	EntityDirectoryFile EntityType = "file_directory_file"
	EntityTextDisplay   EntityType = "text_display"
)

// ParseEntityType validates a wire-format type string.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityChecklist, EntityGembaDoc, EntityDirectoryFile, EntityTextDisplay:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unsupported entity type %q", s)
}

// IsTool reports whether the type may be addressed indirectly through a
// menu item linkage and needs resolution before rendering.
func (t EntityType) IsTool() bool {
	return t == EntityChecklist || t == EntityGembaDoc
}

// CategoryFolderName maps the entity type to its default Drive subfolder.
func (t EntityType) CategoryFolderName() string {
	switch t {
	case EntityChecklist:
		return "Checklists"
	case EntityGembaDoc:
		return "SOPs"
	case EntityDirectoryFile:
		return "Files"
	case EntityTextDisplay:
		return "Text"
	default:
		return "Other"
	}
}

// Organization is the tenant boundary. Branding fields feed the renderer.
type Organization struct {
	ID          string `json:"id" dynamodbav:"id"`
	Name        string `json:"name" dynamodbav:"name"`
	LogoURL     string `json:"logo_url" dynamodbav:"logo_url"`
	AccentColor string `json:"accent_color" dynamodbav:"accent_color"` // "H, S%, L%"
}

// Membership links a user to an organization with a role.
type Membership struct {
	OrgID  string `json:"org_id" dynamodbav:"org_id"`
	UserID string `json:"user_id" dynamodbav:"user_id"`
	Role   string `json:"role" dynamodbav:"role"`
}

const RoleAdmin = "admin"

// DriveIntegration is the per-organization link to a Drive account.
// A connected row always carries a refresh token; the access token is
// untrusted until checked against TokenExpiresAt.
type DriveIntegration struct {
	OrgID                 string     `json:"org_id" dynamodbav:"org_id"`
	Provider              string     `json:"provider" dynamodbav:"provider"`
	Connected             bool       `json:"connected" dynamodbav:"connected"`
	AccessToken           string     `json:"access_token" dynamodbav:"access_token"`
	EncryptedRefreshToken string     `json:"encrypted_refresh_token" dynamodbav:"encrypted_refresh_token"`
	TokenExpiresAt        *time.Time `json:"token_expires_at" dynamodbav:"token_expires_at"`
	RootFolderID          string     `json:"root_folder_id" dynamodbav:"root_folder_id"`
	RootFolderName        string     `json:"root_folder_name" dynamodbav:"root_folder_name"`
	UpdatedAt             time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// DriveFileRef maps an internal entity to the Drive file it was last
// exported to. Keyed by (org, entity type, caller-supplied entity id);
// re-export updates the row in place.
type DriveFileRef struct {
	ID            string     `json:"id" dynamodbav:"id"`
	OrgID         string     `json:"org_id" dynamodbav:"org_id"`
	EntityType    EntityType `json:"entity_type" dynamodbav:"entity_type"`
	EntityID      string     `json:"entity_id" dynamodbav:"entity_id"`
	DriveFileID   string     `json:"drive_file_id" dynamodbav:"drive_file_id"`
	DriveFolderID string     `json:"drive_folder_id" dynamodbav:"drive_folder_id"`
	LastSyncedAt  time.Time  `json:"last_synced_at" dynamodbav:"last_synced_at"`
}

// RefKey builds the composite range key for a DriveFileRef row.
func RefKey(entityType EntityType, entityID string) string {
	return string(entityType) + "#" + entityID
}

// DocumentLink binds a stable menu-item id to the underlying document it
// currently points at. The newest non-archived row wins.
type DocumentLink struct {
	ID         string     `json:"id" dynamodbav:"id"`
	OrgID      string     `json:"org_id" dynamodbav:"org_id"`
	MenuItemID string     `json:"menu_item_id" dynamodbav:"menu_item_id"`
	DocType    EntityType `json:"doc_type" dynamodbav:"doc_type"`
	DocumentID string     `json:"document_id" dynamodbav:"document_id"`
	Archived   bool       `json:"archived" dynamodbav:"archived"`
	CreatedAt  time.Time  `json:"created_at" dynamodbav:"created_at"`
}

// ChecklistItem is one line of a checklist section. SubItems nest one
// level deep.
type ChecklistItem struct {
	ID        string          `json:"id" dynamodbav:"id"`
	Label     string          `json:"label" dynamodbav:"label"`
	SortOrder int             `json:"sort_order" dynamodbav:"sort_order"`
	SubItems  []ChecklistItem `json:"sub_items,omitempty" dynamodbav:"sub_items"`
}

// Section display modes.
const (
	SectionModeCheckbox = "checkbox"
	SectionModeNumbered = "numbered"
)

// ChecklistSection groups items under a titled strip.
type ChecklistSection struct {
	ID          string          `json:"id" dynamodbav:"id"`
	Title       string          `json:"title" dynamodbav:"title"`
	DisplayMode string          `json:"display_mode" dynamodbav:"display_mode"`
	SortOrder   int             `json:"sort_order" dynamodbav:"sort_order"`
	Items       []ChecklistItem `json:"items" dynamodbav:"items"`
}

// Checklist is a structured training checklist.
type Checklist struct {
	ID       string             `json:"id" dynamodbav:"id"`
	OrgID    string             `json:"org_id" dynamodbav:"org_id"`
	Title    string             `json:"title" dynamodbav:"title"`
	Sections []ChecklistSection `json:"sections" dynamodbav:"sections"`
}

// GembaCell is one populated cell of a gemba page grid. Position is the
// zero-based row-major index into the grid.
type GembaCell struct {
	Position int    `json:"position" dynamodbav:"position"`
	ImageURL string `json:"image_url" dynamodbav:"image_url"`
	Caption  string `json:"caption" dynamodbav:"caption"`
}

// GembaPage is one page of an SOP gemba document.
type GembaPage struct {
	ID        string      `json:"id" dynamodbav:"id"`
	SortOrder int         `json:"sort_order" dynamodbav:"sort_order"`
	Cells     []GembaCell `json:"cells" dynamodbav:"cells"`
}

// GembaDoc is an SOP document: a grid of captioned images per page.
type GembaDoc struct {
	ID          string      `json:"id" dynamodbav:"id"`
	OrgID       string      `json:"org_id" dynamodbav:"org_id"`
	Title       string      `json:"title" dynamodbav:"title"`
	Description string      `json:"description" dynamodbav:"description"`
	Rows        int         `json:"rows" dynamodbav:"rows"`
	Columns     int         `json:"columns" dynamodbav:"columns"`
	Pages       []GembaPage `json:"pages" dynamodbav:"pages"`
}

// DirectoryFile is an uploaded file in a file directory.
type DirectoryFile struct {
	ID       string `json:"id" dynamodbav:"id"`
	OrgID    string `json:"org_id" dynamodbav:"org_id"`
	Name     string `json:"name" dynamodbav:"name"`
	MIMEType string `json:"mime_type" dynamodbav:"mime_type"`
	URL      string `json:"url" dynamodbav:"url"`
}

// TextDisplay is a simple name/description text record.
type TextDisplay struct {
	ID          string `json:"id" dynamodbav:"id"`
	OrgID       string `json:"org_id" dynamodbav:"org_id"`
	Name        string `json:"name" dynamodbav:"name"`
	Description string `json:"description" dynamodbav:"description"`
}

// ExportLock guards one in-flight export per entity. ExpiresAt is a
// DynamoDB TTL (Unix timestamp).
type ExportLock struct {
	LockKey   string `json:"lock_key" dynamodbav:"lock_key"`
	OwnerID   string `json:"owner_id" dynamodbav:"owner_id"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
}
