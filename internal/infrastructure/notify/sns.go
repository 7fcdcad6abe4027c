package notify

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/application/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/config"
)

// snsSubjectLimit is the maximum SNS subject length
const snsSubjectLimit = 100

// Publisher is the subset of the SNS client used here
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSChannel publishes reports to an SNS topic
type SNSChannel struct {
	client   Publisher
	topicARN string
	logger   *zap.Logger
}

var _ stocksync.Channel = (*SNSChannel)(nil)

// NewSNSChannel loads AWS configuration and creates an SNS channel. Static
// credentials are used when both keys are set, otherwise the default chain.
func NewSNSChannel(ctx context.Context, cfg config.SNSConfig, logger *zap.Logger) (*SNSChannel, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSNSChannelWithClient(sns.NewFromConfig(awsCfg), cfg.TopicARN, logger), nil
}

// NewSNSChannelWithClient creates an SNS channel over an existing client
func NewSNSChannelWithClient(client Publisher, topicARN string, logger *zap.Logger) *SNSChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SNSChannel{
		client:   client,
		topicARN: topicARN,
		logger:   logger.With(zap.String("channel", "sns")),
	}
}

// Send publishes the report with a success attribute for subscription filters
func (c *SNSChannel) Send(ctx context.Context, title, body string, success bool) bool {
	_, err := c.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Subject:  aws.String(truncate(title, snsSubjectLimit)),
		Message:  aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"success": {
				DataType:    aws.String("String"),
				StringValue: aws.String(strconv.FormatBool(success)),
			},
		},
	})
	if err != nil {
		c.logger.Warn("SNS publish failed", zap.String("topic_arn", c.topicARN), zap.Error(err))
		return false
	}
	return true
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
