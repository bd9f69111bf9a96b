package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	sendFunc    func(*sqs.SendMessageInput) (*sqs.SendMessageOutput, error)
	receiveFunc func(*sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	deleteFunc  func(*sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
	attrsFunc   func(*sqs.GetQueueAttributesInput) (*sqs.GetQueueAttributesOutput, error)
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return m.sendFunc(in)
}

func (m *mockSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return m.receiveFunc(in)
}

func (m *mockSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	return m.deleteFunc(in)
}

func (m *mockSQS) GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return m.attrsFunc(in)
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/prisma-notifications"

func TestSQSClient_SendTypesAttributes(t *testing.T) {
	var got *sqs.SendMessageInput
	c := NewSQSClient(&mockSQS{
		sendFunc: func(in *sqs.SendMessageInput) (*sqs.SendMessageOutput, error) {
			got = in
			return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
		},
	}, testQueueURL)

	id, err := c.Send(context.Background(), []byte(`{"kind":"status_changed"}`), map[string]string{
		"Type":     "status_changed",
		"Priority": "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.NotNil(t, got)
	assert.Equal(t, testQueueURL, aws.ToString(got.QueueUrl))
	assert.Equal(t, `{"kind":"status_changed"}`, aws.ToString(got.MessageBody))
	assert.Equal(t, "String", aws.ToString(got.MessageAttributes["Type"].DataType))
	assert.Equal(t, "Number", aws.ToString(got.MessageAttributes["Priority"].DataType))
	assert.Equal(t, "2", aws.ToString(got.MessageAttributes["Priority"].StringValue))
}

func TestSQSClient_SendError(t *testing.T) {
	c := NewSQSClient(&mockSQS{
		sendFunc: func(in *sqs.SendMessageInput) (*sqs.SendMessageOutput, error) {
			return nil, errors.New("throttled")
		},
	}, testQueueURL)

	_, err := c.Send(context.Background(), []byte("x"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSQSClient_ReceiveMapsMessages(t *testing.T) {
	var got *sqs.ReceiveMessageInput
	c := NewSQSClient(&mockSQS{
		receiveFunc: func(in *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
			got = in
			return &sqs.ReceiveMessageOutput{Messages: []types.Message{{
				MessageId:     aws.String("m-1"),
				Body:          aws.String("body"),
				ReceiptHandle: aws.String("rh-1"),
				Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
				MessageAttributes: map[string]types.MessageAttributeValue{
					"Type": {DataType: aws.String("String"), StringValue: aws.String("submission_confirmation")},
				},
			}}}, nil
		},
	}, testQueueURL)

	msgs, err := c.Receive(context.Background(), ReceiveOptions{
		MaxMessages:       25,
		WaitTime:          20 * time.Second,
		VisibilityTimeout: time.Minute,
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, int32(10), got.MaxNumberOfMessages)
	assert.Equal(t, int32(20), got.WaitTimeSeconds)
	assert.Equal(t, int32(60), got.VisibilityTimeout)

	require.Len(t, msgs, 1)
	assert.Equal(t, "m-1", msgs[0].ID)
	assert.Equal(t, "body", string(msgs[0].Body))
	assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)
	assert.Equal(t, 3, msgs[0].ReceiveCount)
	assert.Equal(t, "submission_confirmation", msgs[0].Attributes["Type"])
}

func TestSQSClient_Delete(t *testing.T) {
	var receipt string
	c := NewSQSClient(&mockSQS{
		deleteFunc: func(in *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
			receipt = aws.ToString(in.ReceiptHandle)
			return &sqs.DeleteMessageOutput{}, nil
		},
	}, testQueueURL)

	require.NoError(t, c.Delete(context.Background(), "rh-9"))
	assert.Equal(t, "rh-9", receipt)
}

func TestSQSClient_Stats(t *testing.T) {
	c := NewSQSClient(&mockSQS{
		attrsFunc: func(in *sqs.GetQueueAttributesInput) (*sqs.GetQueueAttributesOutput, error) {
			return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{
				"ApproximateNumberOfMessages":           "7",
				"ApproximateNumberOfMessagesNotVisible": "2",
				"ApproximateNumberOfMessagesDelayed":    "1",
			}}, nil
		},
	}, testQueueURL)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Available: 7, InFlight: 2, Delayed: 1}, stats)
}
