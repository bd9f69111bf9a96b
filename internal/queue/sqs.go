package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsAPI is the subset of the SQS client used here.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSClient talks to an Amazon SQS standard queue. Dead-lettering is handled
// by the queue's redrive policy.
type SQSClient struct {
	api      sqsAPI
	queueURL string
}

// NewSQSClient wraps an existing SQS API client.
func NewSQSClient(api sqsAPI, queueURL string) *SQSClient {
	return &SQSClient{api: api, queueURL: queueURL}
}

// NewSQSClientFromConfig builds an SQS client from AWS config. endpoint
// overrides the service endpoint (LocalStack, ElasticMQ) when set.
func NewSQSClientFromConfig(cfg aws.Config, queueURL, endpoint string) *SQSClient {
	api := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewSQSClient(api, queueURL)
}

// Send publishes body with attrs as message attributes. Numeric values are
// typed as Number.
func (c *SQSClient) Send(ctx context.Context, body []byte, attrs map[string]string) (string, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
	}

	if len(attrs) > 0 {
		in.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			dataType := "String"
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				dataType = "Number"
			}
			in.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String(dataType),
				StringValue: aws.String(v),
			}
		}
	}

	out, err := c.api.SendMessage(ctx, in)
	if err != nil {
		return "", fmt.Errorf("sqs send message: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive long-polls the queue.
func (c *SQSClient) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.queueURL),
		MaxNumberOfMessages:   int32(opts.batchSize()),
		WaitTimeSeconds:       seconds(opts.WaitTime),
		VisibilityTimeout:     seconds(opts.VisibilityTimeout),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:            aws.ToString(m.MessageId),
			Body:          []byte(aws.ToString(m.Body)),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			ReceiveCount:  1,
		}
		if n, err := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil {
			msg.ReceiveCount = n
		}
		if len(m.MessageAttributes) > 0 {
			msg.Attributes = make(map[string]string, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				msg.Attributes[k] = aws.ToString(v.StringValue)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Delete removes the message owned by receiptHandle.
func (c *SQSClient) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

// Stats reads the approximate message counters.
func (c *SQSClient) Stats(ctx context.Context) (Stats, error) {
	out, err := c.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(c.queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("sqs get queue attributes: %w", err)
	}

	attr := func(name types.QueueAttributeName) int64 {
		n, _ := strconv.ParseInt(out.Attributes[string(name)], 10, 64)
		return n
	}

	return Stats{
		Available: attr(types.QueueAttributeNameApproximateNumberOfMessages),
		InFlight:  attr(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
		Delayed:   attr(types.QueueAttributeNameApproximateNumberOfMessagesDelayed),
	}, nil
}

// Close is a no-op; the SDK client holds no persistent connections to release.
func (c *SQSClient) Close() error {
	return nil
}

func seconds(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	return int32(d / time.Second)
}
