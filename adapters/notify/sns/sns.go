// Package sns publishes notifications to an Amazon SNS topic.
package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	json "github.com/goccy/go-json"

	"github.com/clustermaster/clustermaster/domain/model"
)

// API is the subset of the SNS client used by Notifier.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ API = (*sns.Client)(nil)

// Notifier publishes each notification as a JSON message.
type Notifier struct {
	cli      API
	topicARN string
}

func New(cli API, topicARN string) (*Notifier, error) {
	if topicARN == "" {
		return nil, errors.New("sns: topic ARN required")
	}
	return &Notifier{cli: cli, topicARN: topicARN}, nil
}

// NewClient builds an SNS client from the default AWS config chain.
func NewClient(ctx context.Context, endpoint string) (*sns.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(endpoint)
		if o.Region == "" {
			o.Region = "us-east-1"
		}
		if o.Credentials == nil {
			o.Credentials = credentials.NewStaticCredentialsProvider("x", "x", "")
		}
	}), nil
}

func (n *Notifier) Notify(ctx context.Context, ev *model.Notification) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	attrs := map[string]types.MessageAttributeValue{
		"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
		"level":        {DataType: aws.String("String"), StringValue: aws.String(ev.Level)},
	}
	if ev.ClusterName != "" {
		attrs["cluster"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(ev.ClusterName)}
	}
	_, err = n.cli.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.topicARN),
		Subject:           aws.String(subject(ev.Title)),
		Message:           aws.String(string(payload)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", ev.ID, err)
	}
	return nil
}

// subject trims title to the 100 character SNS limit.
func subject(title string) string {
	if title == "" {
		return "clustermaster"
	}
	r := []rune(title)
	if len(r) > 100 {
		r = r[:100]
	}
	return string(r)
}

var _ model.NotifierPort = (*Notifier)(nil)
