// Package app wires the export service's dependencies and routes API
// Gateway requests.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/opsboard/driveexport/internal/auth"
	"github.com/opsboard/driveexport/internal/crypto"
	"github.com/opsboard/driveexport/internal/drive"
	"github.com/opsboard/driveexport/internal/export"
	"github.com/opsboard/driveexport/internal/handler"
	"github.com/opsboard/driveexport/internal/lock"
	"github.com/opsboard/driveexport/internal/secret"
	"github.com/opsboard/driveexport/internal/store"
)

// App holds the dependencies for the Lambda function.
type App struct {
	exportHandler    *handler.ExportHandler
	apiGatewaySecret string
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context) *App {
	devMode := os.Getenv("DEV_MODE") == "true"

	var dynamoClient *dynamodb.Client
	var kmsService crypto.Encryptor
	var resolver secret.Resolver

	if devMode {
		kmsService = crypto.NewMockEncryptor()
		resolver = secret.NewEnvResolver()
		fmt.Println("Using in-memory store, MockEncryptor and EnvResolver (DEV_MODE=true)")
	} else {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			panic(fmt.Sprintf("unable to load SDK config, %v", err))
		}
		dynamoClient = dynamodb.NewFromConfig(cfg)

		kmsKeyID := envOr("KMS_KEY_ID", "alias/driveexport-token-key")
		kmsService = crypto.NewKMSService(kms.NewFromConfig(cfg), kmsKeyID)

		resolver = secret.NewSSMResolver(ssm.NewFromConfig(cfg))
		fmt.Println("Using SSMResolver (SSM Parameter Store)")
	}

	googleClientSecret, err := resolver.GetSecret(ctx, envOr("GOOGLE_CLIENT_SECRET_PARAM", "/driveexport/google-client-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve GOOGLE_CLIENT_SECRET: %v", err)
	}

	jwtSecret, err := resolver.GetSecret(ctx, envOr("JWT_SECRET_PARAM", "/driveexport/jwt-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve JWT_SECRET: %v", err)
		jwtSecret = "default-dev-secret"
	}

	apiGatewaySecret, err := resolver.GetSecret(ctx, envOr("API_GATEWAY_SECRET_PARAM", "/driveexport/api-gateway-secret"))
	if err != nil {
		log.Printf("WARNING: failed to resolve API_GATEWAY_SECRET: %v", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: googleClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/drive",
		},
		Endpoint: google.Endpoint,
	}

	tables := store.Tables{
		Organizations:  envOr("ORGANIZATIONS_TABLE", "Organizations"),
		Memberships:    envOr("MEMBERSHIPS_TABLE", "Memberships"),
		Checklists:     envOr("CHECKLISTS_TABLE", "Checklists"),
		GembaDocs:      envOr("GEMBA_DOCS_TABLE", "GembaDocs"),
		DirectoryFiles: envOr("DIRECTORY_FILES_TABLE", "DirectoryFiles"),
		TextDisplays:   envOr("TEXT_DISPLAYS_TABLE", "TextDisplays"),
		DocumentLinks:  envOr("DOCUMENT_LINKS_TABLE", "DocumentLinks"),
		Integrations:   envOr("INTEGRATIONS_TABLE", "DriveIntegrations"),
		DriveFileRefs:  envOr("DRIVE_FILE_REFS_TABLE", "DriveFileRefs"),
	}
	st := store.New(dynamoClient, tables)

	tokenManager := auth.NewTokenManager(oauthConfig, st, kmsService)
	lockManager := lock.NewManager(dynamoClient, envOr("EXPORT_LOCKS_TABLE", "ExportLocks"))

	exportService := export.NewService(st, tokenManager, lockManager, drive.NewClientWithToken, nil)
	exportHandler := handler.NewExportHandler(exportService, st, jwtSecret)

	return &App{
		exportHandler:    exportHandler,
		apiGatewaySecret: apiGatewaySecret,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS Preflight
	if method == "OPTIONS" {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Security: Verify Request Origin (CloudFront only)
	if os.Getenv("DEV_MODE") != "true" {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			fmt.Printf("Security Block: Missing or invalid X-Origin-Verify header\n")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	path = strings.TrimPrefix(path, "/api")

	switch {
	case path == "/export/drive" && method == "POST":
		return corsResponse(must(app.exportHandler.Export(ctx, req))), nil
	case path == "/export/drive/resync" && method == "POST":
		return corsResponse(must(app.exportHandler.Resync(ctx, req))), nil
	case path == "/export/drive/status" && method == "GET":
		return corsResponse(must(app.exportHandler.Status(ctx, req))), nil
	case path == "/healthz" && method == "GET":
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "ok"}), nil
	}

	return corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = envOr("FRONTEND_URL", "http://localhost:3000")
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, ignoring the error.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
