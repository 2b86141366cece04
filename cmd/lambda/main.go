package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"

	"cms-backend/infrastructure/config"
	"cms-backend/infrastructure/di"
	"cms-backend/interfaces/http/rest"
	"cms-backend/interfaces/http/rest/middleware"
)

// Global variables for Lambda lifecycle management
var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The container lives as long as the execution environment; Lambda gives
	// no shutdown hook to run the cleanup from.
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	opts := rest.Options{
		CORS:             cfg.EnableCORS,
		RequestTimeout:   cfg.RequestTimeout,
		TrustGatewayAuth: true,
		Observer:         container.Metrics,
		Ready:            container.Ready,
	}
	router := rest.NewRouter(container.CommandBus, container.QueryBus, container.JWTValidator, opts, container.Logger)
	chiLambda = chiadapter.NewV2(router.Setup())

	container.Logger.Info("Lambda cold start completed",
		zap.String("function", cfg.LambdaFunctionName),
		zap.Duration("duration", time.Since(coldStartTime)))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	req.Headers = gatewayHeaders(req)

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	fields := []zap.Field{
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.String("stage", req.RequestContext.Stage),
		zap.Int("status_code", resp.StatusCode),
	}
	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response", append(fields, zap.String("body", resp.Body))...)
	} else {
		container.Logger.Debug("Lambda response", fields...)
	}
	return resp, err
}

// gatewayHeaders returns the request headers with the caller identity taken
// from the API Gateway JWT authorizer. Identity headers sent by the client
// are always dropped so they cannot be forged.
func gatewayHeaders(req events.APIGatewayV2HTTPRequest) map[string]string {
	headers := make(map[string]string, len(req.Headers)+5)
	for name, value := range req.Headers {
		switch strings.ToLower(name) {
		case strings.ToLower(middleware.HeaderGatewayAuthorized),
			strings.ToLower(middleware.HeaderUserID),
			strings.ToLower(middleware.HeaderUserEmail),
			strings.ToLower(middleware.HeaderUserRoles),
			strings.ToLower(middleware.HeaderUserTenants):
			continue
		}
		headers[name] = value
	}

	authorizer := req.RequestContext.Authorizer
	if authorizer == nil || authorizer.JWT == nil {
		return headers
	}
	claims := authorizer.JWT.Claims
	if claims["sub"] == "" {
		return headers
	}

	headers[middleware.HeaderGatewayAuthorized] = "true"
	headers[middleware.HeaderUserID] = claims["sub"]
	headers[middleware.HeaderUserEmail] = claims["email"]
	headers[middleware.HeaderUserRoles] = claimList(claims["roles"])
	headers[middleware.HeaderUserTenants] = claimList(claims["tenants"])
	return headers
}

// claimList normalizes an array claim, which API Gateway flattens to a
// string such as "[admin editor]", into a comma separated list.
func claimList(raw string) string {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(raw), "["), "]"))
	return strings.Join(strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	}), ",")
}

func main() {
	lambda.Start(Handler)
}
