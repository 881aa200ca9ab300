package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsboard/driveexport/internal/model"
)

func TestIsOrgAdmin(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	if err := st.PutMembership(ctx, model.Membership{OrgID: "org-1", UserID: "admin-user", Role: model.RoleAdmin}); err != nil {
		t.Fatalf("PutMembership: %v", err)
	}
	if err := st.PutMembership(ctx, model.Membership{OrgID: "org-1", UserID: "plain-user", Role: "member"}); err != nil {
		t.Fatalf("PutMembership: %v", err)
	}

	tests := []struct {
		name   string
		userID string
		orgID  string
		want   bool
	}{
		{"admin", "admin-user", "org-1", true},
		{"non-admin role", "plain-user", "org-1", false},
		{"no membership", "stranger", "org-1", false},
		{"wrong org", "admin-user", "org-2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.IsOrgAdmin(ctx, tt.userID, tt.orgID)
			if err != nil {
				t.Fatalf("IsOrgAdmin: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsOrgAdmin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntityLookupsAreOrgScoped(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	if err := st.PutChecklist(ctx, model.Checklist{ID: "cl-1", OrgID: "org-1", Title: "Opening"}); err != nil {
		t.Fatalf("PutChecklist: %v", err)
	}

	if _, err := st.GetChecklist(ctx, "org-1", "cl-1"); err != nil {
		t.Errorf("same-org lookup failed: %v", err)
	}
	if _, err := st.GetChecklist(ctx, "org-2", "cl-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-org lookup should be ErrNotFound, got %v", err)
	}
}

func TestLatestDocumentLink(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	base := time.Now().Add(-time.Hour)
	links := []model.DocumentLink{
		{ID: "l-1", OrgID: "org-1", MenuItemID: "mi-1", DocType: model.EntityChecklist, DocumentID: "cl-old", CreatedAt: base},
		{ID: "l-2", OrgID: "org-1", MenuItemID: "mi-1", DocType: model.EntityChecklist, DocumentID: "cl-new", CreatedAt: base.Add(10 * time.Minute)},
		{ID: "l-3", OrgID: "org-1", MenuItemID: "mi-1", DocType: model.EntityChecklist, DocumentID: "cl-archived", CreatedAt: base.Add(20 * time.Minute), Archived: true},
		{ID: "l-4", OrgID: "org-1", MenuItemID: "mi-1", DocType: model.EntityGembaDoc, DocumentID: "gd-1", CreatedAt: base.Add(30 * time.Minute)},
		{ID: "l-5", OrgID: "org-2", MenuItemID: "mi-1", DocType: model.EntityChecklist, DocumentID: "cl-other-org", CreatedAt: base.Add(40 * time.Minute)},
	}
	for _, l := range links {
		if err := st.PutDocumentLink(ctx, l); err != nil {
			t.Fatalf("PutDocumentLink: %v", err)
		}
	}

	link, err := st.LatestDocumentLink(ctx, "org-1", "mi-1", model.EntityChecklist)
	if err != nil {
		t.Fatalf("LatestDocumentLink: %v", err)
	}
	// Newest non-archived link of the right org and type wins.
	if link.DocumentID != "cl-new" {
		t.Errorf("resolved %q, want cl-new", link.DocumentID)
	}

	if _, err := st.LatestDocumentLink(ctx, "org-1", "mi-none", model.EntityChecklist); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unlinked menu item, got %v", err)
	}
}

func TestUpsertReference_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	ref, err := st.UpsertReference(ctx, "org-1", model.EntityTextDisplay, "td-1", "td-1", "drive-1", "folder-1")
	if err != nil {
		t.Fatalf("UpsertReference: %v", err)
	}
	if ref.ID == "" {
		t.Error("new reference has no id")
	}
	if ref.EntityID != "td-1" || ref.DriveFileID != "drive-1" {
		t.Errorf("unexpected reference %+v", ref)
	}

	// Re-export updates the same row; the generated id is stable.
	ref2, err := st.UpsertReference(ctx, "org-1", model.EntityTextDisplay, "td-1", "td-1", "drive-2", "folder-1")
	if err != nil {
		t.Fatalf("UpsertReference (update): %v", err)
	}
	if ref2.ID != ref.ID {
		t.Errorf("row id changed across upserts: %q vs %q", ref2.ID, ref.ID)
	}
	if ref2.DriveFileID != "drive-2" {
		t.Errorf("drive file id not updated, got %q", ref2.DriveFileID)
	}

	got, err := st.GetReference(ctx, "org-1", model.EntityTextDisplay, "td-1")
	if err != nil {
		t.Fatalf("GetReference: %v", err)
	}
	if got.DriveFileID != "drive-2" {
		t.Errorf("stored drive file id %q", got.DriveFileID)
	}
}

func TestUpsertReference_SelfHealsResolvedKeyedRow(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	// A historical row keyed by the resolved document id instead of the
	// menu-item id the caller uses.
	stale, err := st.UpsertReference(ctx, "org-1", model.EntityChecklist, "cl-9", "cl-9", "drive-1", "folder-1")
	if err != nil {
		t.Fatalf("UpsertReference (seed): %v", err)
	}

	ref, err := st.UpsertReference(ctx, "org-1", model.EntityChecklist, "mi-1", "cl-9", "drive-1", "folder-1")
	if err != nil {
		t.Fatalf("UpsertReference (heal): %v", err)
	}
	if ref.ID != stale.ID {
		t.Errorf("expected the stale row to be rekeyed, got new id %q", ref.ID)
	}
	if ref.EntityID != "mi-1" {
		t.Errorf("entity id %q, want caller id", ref.EntityID)
	}

	// The stale key is gone; only the caller-keyed row remains.
	if _, err := st.GetReference(ctx, "org-1", model.EntityChecklist, "cl-9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale row still present: %v", err)
	}
	if _, err := st.GetReference(ctx, "org-1", model.EntityChecklist, "mi-1"); err != nil {
		t.Errorf("caller-keyed row missing: %v", err)
	}
}

func TestGetReference_NotFound(t *testing.T) {
	st := NewMemory()
	if _, err := st.GetReference(context.Background(), "org-1", model.EntityChecklist, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
