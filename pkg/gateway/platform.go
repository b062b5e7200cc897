package gateway

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/cloudspend/sentinel/pkg/registry"
)

// PlatformGateway manages device endpoints under one SNS platform
// application. It implements the registry's PushGateway and doubles as
// the health monitor's feedback source: SNS flips an endpoint's Enabled
// attribute to false when the platform reports the token dead.
type PlatformGateway struct {
	api            SNSAPI
	applicationARN string
}

var _ registry.PushGateway = (*PlatformGateway)(nil)

// NewPlatformGateway creates a gateway from an AWS config.
func NewPlatformGateway(cfg aws.Config, applicationARN string) *PlatformGateway {
	return &PlatformGateway{api: sns.NewFromConfig(cfg), applicationARN: applicationARN}
}

// NewPlatformGatewayWithAPI creates a gateway with a custom API
// implementation (for testing).
func NewPlatformGatewayWithAPI(api SNSAPI, applicationARN string) *PlatformGateway {
	return &PlatformGateway{api: api, applicationARN: applicationARN}
}

func (g *PlatformGateway) CreateEndpoint(ctx context.Context, token, userData string) (string, error) {
	in := &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(g.applicationARN),
		Token:                  aws.String(token),
	}
	if userData != "" {
		in.CustomUserData = aws.String(userData)
	}
	out, err := g.api.CreatePlatformEndpoint(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (g *PlatformGateway) DeleteEndpoint(ctx context.Context, handle string) error {
	_, err := g.api.DeleteEndpoint(ctx, &sns.DeleteEndpointInput{
		EndpointArn: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("delete endpoint %s: %w", handle, err)
	}
	return nil
}

func (g *PlatformGateway) EndpointAttributes(ctx context.Context, handle string) (map[string]string, error) {
	out, err := g.api.GetEndpointAttributes(ctx, &sns.GetEndpointAttributesInput{
		EndpointArn: aws.String(handle),
	})
	if err != nil {
		return nil, fmt.Errorf("get endpoint attributes: %w", err)
	}
	return out.Attributes, nil
}

func (g *PlatformGateway) ApplicationAttributes(ctx context.Context) (map[string]string, error) {
	out, err := g.api.GetPlatformApplicationAttributes(ctx, &sns.GetPlatformApplicationAttributesInput{
		PlatformApplicationArn: aws.String(g.applicationARN),
	})
	if err != nil {
		return nil, fmt.Errorf("get platform application attributes: %w", err)
	}
	return out.Attributes, nil
}

func (g *PlatformGateway) ListEndpoints(ctx context.Context) ([]string, error) {
	var handles []string
	var next *string
	for {
		out, err := g.api.ListEndpointsByPlatformApplication(ctx, &sns.ListEndpointsByPlatformApplicationInput{
			PlatformApplicationArn: aws.String(g.applicationARN),
			NextToken:              next,
		})
		if err != nil {
			return nil, fmt.Errorf("list endpoints: %w", err)
		}
		for _, ep := range out.Endpoints {
			handles = append(handles, aws.ToString(ep.EndpointArn))
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}
	return handles, nil
}

// InvalidEndpoints returns handles whose Enabled attribute is false,
// the delivery-feedback signal that a token is dead.
func (g *PlatformGateway) InvalidEndpoints(ctx context.Context) ([]string, error) {
	handles, err := g.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	var invalid []string
	for _, handle := range handles {
		attrs, err := g.EndpointAttributes(ctx, handle)
		if err != nil {
			return nil, err
		}
		if attrs["Enabled"] == "false" {
			invalid = append(invalid, handle)
		}
	}
	return invalid, nil
}
