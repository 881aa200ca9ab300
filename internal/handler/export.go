package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/opsboard/driveexport/internal/auth"
	"github.com/opsboard/driveexport/internal/export"
	"github.com/opsboard/driveexport/internal/lock"
	"github.com/opsboard/driveexport/internal/model"
	"github.com/opsboard/driveexport/internal/store"
)

// ExportHandler exposes the Drive export pipeline over the Lambda API.
type ExportHandler struct {
	service   *export.Service
	store     *store.Store
	jwtSecret string
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(service *export.Service, st *store.Store, jwtSecret string) *ExportHandler {
	return &ExportHandler{service: service, store: st, jwtSecret: jwtSecret}
}

// exportRequest is the POST /export/drive body.
type exportRequest struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	FolderID string `json:"folderId,omitempty"`
}

// Export handles POST /export/drive.
func (h *ExportHandler) Export(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := GetClaims(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}
	if claims.OrgID == "" {
		return errorResponse(http.StatusBadRequest, "Missing organization"), nil
	}

	var input exportRequest
	if err := json.Unmarshal([]byte(req.Body), &input); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if input.Type == "" || input.ID == "" {
		return errorResponse(http.StatusBadRequest, "Missing type or id"), nil
	}

	entityType, err := model.ParseEntityType(input.Type)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	isAdmin, err := h.store.IsOrgAdmin(ctx, claims.UserID, claims.OrgID)
	if err != nil {
		fmt.Printf("Export: admin lookup error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to verify permissions"), nil
	}
	if !isAdmin {
		return errorResponse(http.StatusForbidden, "Forbidden"), nil
	}

	result, err := h.service.Export(ctx, claims.OrgID, claims.UserID, export.Request{
		Type:     entityType,
		ID:       input.ID,
		FolderID: input.FolderID,
	})
	if err != nil {
		return exportErrorResponse(entityType, input.ID, err), nil
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"success":       true,
		"drive_file_id": result.DriveFileID,
		"message":       fmt.Sprintf("Exported %s to Google Drive", input.ID),
	}), nil
}

// resyncRequest is the POST /export/drive/resync body.
type resyncRequest struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// Resync handles POST /export/drive/resync: a best-effort bulk
// re-export of several entities of one type.
func (h *ExportHandler) Resync(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := GetClaims(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}
	if claims.OrgID == "" {
		return errorResponse(http.StatusBadRequest, "Missing organization"), nil
	}

	var input resyncRequest
	if err := json.Unmarshal([]byte(req.Body), &input); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if input.Type == "" || len(input.IDs) == 0 {
		return errorResponse(http.StatusBadRequest, "Missing type or ids"), nil
	}

	entityType, err := model.ParseEntityType(input.Type)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	isAdmin, err := h.store.IsOrgAdmin(ctx, claims.UserID, claims.OrgID)
	if err != nil {
		fmt.Printf("Resync: admin lookup error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to verify permissions"), nil
	}
	if !isAdmin {
		return errorResponse(http.StatusForbidden, "Forbidden"), nil
	}

	results := h.service.ExportBatch(ctx, claims.OrgID, claims.UserID, entityType, input.IDs)
	return jsonResponse(http.StatusOK, map[string]any{"results": results}), nil
}

// Status handles GET /export/drive/status: a read-only view of the
// organization's integration, used by the UI to enable the export
// action. Any signed-in member may call it.
func (h *ExportHandler) Status(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := GetClaims(req, h.jwtSecret)
	if err != nil {
		return unauthorized(), nil
	}
	if claims.OrgID == "" {
		return errorResponse(http.StatusBadRequest, "Missing organization"), nil
	}

	integ, err := h.store.GetIntegration(ctx, claims.OrgID)
	if errors.Is(err, store.ErrNotFound) {
		return jsonResponse(http.StatusOK, map[string]any{"connected": false}), nil
	}
	if err != nil {
		fmt.Printf("Status: integration lookup error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to load integration"), nil
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"connected":        integ.Connected,
		"provider":         integ.Provider,
		"root_folder_id":   integ.RootFolderID,
		"root_folder_name": integ.RootFolderName,
	}), nil
}

// exportErrorResponse maps pipeline errors onto the HTTP contract.
func exportErrorResponse(entityType model.EntityType, id string, err error) events.APIGatewayProxyResponse {
	switch {
	case errors.Is(err, export.ErrEntityNotFound):
		return errorResponse(http.StatusNotFound, fmt.Sprintf("%s %s not found", entityType, id))
	case errors.Is(err, export.ErrNotConnected):
		return errorResponse(http.StatusBadRequest, "Drive is not connected")
	case errors.Is(err, auth.ErrMissingRefreshToken):
		return errorResponse(http.StatusBadRequest, "Drive connection requires re-authorization")
	case errors.Is(err, lock.ErrLocked):
		return errorResponse(http.StatusConflict, "Export already in progress")
	default:
		fmt.Printf("Export error for %s/%s: %v\n", entityType, id, err)
		return errorResponse(http.StatusInternalServerError, err.Error())
	}
}
