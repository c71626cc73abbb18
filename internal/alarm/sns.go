package alarm

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// snsAPI is the slice of the SNS client the dispatcher uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSDispatcher publishes alarms to an AWS SNS topic, from which
// operators fan out to mail or chat. Subject lines carry the severity
// and a prefix so filters can route timeouts differently from
// application errors.
type SNSDispatcher struct {
	client   snsAPI
	topicARN string
	prefix   string
}

// SNSConfig holds the settings for the SNS transport. AccessKey and
// SecretKey may be empty to use the ambient AWS credential chain.
type SNSConfig struct {
	TopicARN  string `yaml:"topicARN"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	// SubjectPrefix is prepended to every alarm subject, typically the
	// monitor's resource name prefix.
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// NewSNSDispatcher builds the SNS transport from cfg.
func NewSNSDispatcher(ctx context.Context, cfg SNSConfig) (*SNSDispatcher, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SNSDispatcher{
		client:   sns.NewFromConfig(awsCfg),
		topicARN: cfg.TopicARN,
		prefix:   cfg.SubjectPrefix,
	}, nil
}

// Notify publishes one message to the topic.
func (d *SNSDispatcher) Notify(ctx context.Context, severity, title, body string, timeout time.Duration) error {
	subject := fmt.Sprintf("[%s] %s: %s", d.prefix, severity, title)
	// SNS caps subjects at 100 characters.
	if len(subject) > 100 {
		subject = subject[:100]
	}
	message := body + fmt.Sprintf("\n\n(timeout was %s)", timeout)
	_, err := d.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish alarm: %w", err)
	}
	return nil
}
