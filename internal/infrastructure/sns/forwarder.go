package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/storefront-pipeline/internal/config"
	"github.com/storefront-pipeline/internal/infrastructure/awscfg"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
)

// EventNameAttribute carries the bus event name so topic subscribers can
// filter without parsing the body.
const EventNameAttribute = "event_name"

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Forwarder mirrors bus events to an SNS topic.
type Forwarder struct {
	client   snsAPI
	topicARN string
}

func NewForwarder(ctx context.Context, cfg *config.Config) (*Forwarder, error) {
	awsCfg, err := awscfg.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.BaseEndpoint = awscfg.Endpoint(cfg)
	})
	return &Forwarder{client: client, topicARN: cfg.SNSTopicARN}, nil
}

func (f *Forwarder) Forward(ctx context.Context, ev eventbus.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}
	_, err = f.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(f.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			EventNameAttribute: {DataType: aws.String("String"), StringValue: aws.String(ev.Name)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", ev.Name, err)
	}
	return nil
}

var _ eventbus.Forwarder = (*Forwarder)(nil)
