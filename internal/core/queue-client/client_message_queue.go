package queueclient

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	cfg "github.com/markdave123-py/embedding-forge/internal/config"
	"github.com/markdave123-py/embedding-forge/internal/core"
)

type SQSClient struct {
	client   *sqs.Client
	queueURL string
}

var _ core.QueueClient = (*SQSClient)(nil)

func NewSQSClient(ctx context.Context, cfg *cfg.Config) (*SQSClient, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("QUEUE_URL not set")
	}
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.AwsRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQSClient{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
	}, nil
}

// ReceiveMessages long-polls the queue for up to maxMessages messages,
// waiting at most wait before returning whatever arrived (possibly nothing).
func (c *SQSClient) ReceiveMessages(ctx context.Context, maxMessages int32, wait time.Duration) ([]core.QueueMessage, error) {
	ctxRecv, cancel := context.WithTimeout(ctx, wait+30*time.Second)
	defer cancel()

	out, err := c.client.ReceiveMessage(ctxRecv, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     int32(wait / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive failed: %w", err)
	}

	msgs := make([]core.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, core.QueueMessage{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
		})
	}
	return msgs, nil
}

func (c *SQSClient) DeleteMessage(ctx context.Context, receiptHandle string) error {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.client.DeleteMessage(ctxDel, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete failed: %w", err)
	}
	return nil
}
