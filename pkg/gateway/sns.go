// Package gateway adapts AWS SNS to the delivery and registry
// abstractions: a multi-protocol topic destination, the platform
// application endpoint gateway, and a feedback source built from
// disabled-endpoint attributes.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/cloudspend/sentinel/pkg/dispatch"
)

// SNSAPI is the subset of the SNS client we use.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, params *sns.DeleteEndpointInput, optFns ...func(*sns.Options)) (*sns.DeleteEndpointOutput, error)
	GetEndpointAttributes(ctx context.Context, params *sns.GetEndpointAttributesInput, optFns ...func(*sns.Options)) (*sns.GetEndpointAttributesOutput, error)
	GetPlatformApplicationAttributes(ctx context.Context, params *sns.GetPlatformApplicationAttributesInput, optFns ...func(*sns.Options)) (*sns.GetPlatformApplicationAttributesOutput, error)
	ListEndpointsByPlatformApplication(ctx context.Context, params *sns.ListEndpointsByPlatformApplicationInput, optFns ...func(*sns.Options)) (*sns.ListEndpointsByPlatformApplicationOutput, error)
}

// TopicDestination publishes multi-part messages to an SNS topic using
// per-protocol message overrides.
type TopicDestination struct {
	api     SNSAPI
	sandbox bool
}

var _ dispatch.Destination = (*TopicDestination)(nil)

// NewTopicDestination creates a destination from an AWS config. sandbox
// additionally targets the APNS sandbox key, for development builds.
func NewTopicDestination(cfg aws.Config, sandbox bool) *TopicDestination {
	return &TopicDestination{api: sns.NewFromConfig(cfg), sandbox: sandbox}
}

// NewTopicDestinationWithAPI creates a destination with a custom API
// implementation (for testing).
func NewTopicDestinationWithAPI(api SNSAPI, sandbox bool) *TopicDestination {
	return &TopicDestination{api: api, sandbox: sandbox}
}

// Publish sends one structured message to msg.Topic and returns the SNS
// message ID.
func (d *TopicDestination) Publish(ctx context.Context, msg dispatch.Message) (string, error) {
	parts := map[string]string{
		"default": msg.Default,
	}
	if msg.SMS != "" {
		parts["sms"] = msg.SMS
	}
	if msg.Push != "" {
		parts["APNS"] = msg.Push
		if d.sandbox {
			parts["APNS_SANDBOX"] = msg.Push
		}
	}

	body, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("encode message parts: %w", err)
	}

	out, err := d.api.Publish(ctx, &sns.PublishInput{
		TopicArn:         aws.String(msg.Topic),
		Subject:          aws.String(msg.Subject),
		Message:          aws.String(string(body)),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	return aws.ToString(out.MessageId), nil
}
