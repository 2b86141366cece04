package main

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
)

func TestGatewayHeaders(t *testing.T) {
	t.Run("claims become identity headers", func(t *testing.T) {
		req := events.APIGatewayV2HTTPRequest{
			Headers: map[string]string{"content-type": "application/json"},
			RequestContext: events.APIGatewayV2HTTPRequestContext{
				Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
					JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{
						Claims: map[string]string{
							"sub":     "u1",
							"email":   "u1@example.com",
							"roles":   "[editor viewer]",
							"tenants": "t1,t2",
						},
					},
				},
			},
		}

		headers := gatewayHeaders(req)
		assert.Equal(t, "true", headers["X-API-Gateway-Authorized"])
		assert.Equal(t, "u1", headers["X-User-ID"])
		assert.Equal(t, "editor,viewer", headers["X-User-Roles"])
		assert.Equal(t, "t1,t2", headers["X-User-Tenants"])
		assert.Equal(t, "application/json", headers["content-type"])
	})

	t.Run("forged identity headers are dropped", func(t *testing.T) {
		req := events.APIGatewayV2HTTPRequest{
			Headers: map[string]string{
				"x-api-gateway-authorized": "true",
				"x-user-id":                "intruder",
				"x-user-roles":             "admin",
			},
		}

		headers := gatewayHeaders(req)
		assert.Empty(t, headers)
	})
}

func TestClaimList(t *testing.T) {
	assert.Equal(t, "a,b", claimList("[a b]"))
	assert.Equal(t, "a,b", claimList(" a, b "))
	assert.Equal(t, "", claimList("[]"))
}
