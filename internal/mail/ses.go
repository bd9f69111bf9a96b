package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
)

const charset = "UTF-8"

// SES tag values allow only ASCII letters, digits, underscores and dashes.
var invalidTagChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

var throttleCodes = map[string]bool{
	"TooManyRequestsException": true,
	"Throttling":               true,
	"ThrottlingException":      true,
	"LimitExceededException":   true,
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds sender identity settings.
type SESConfig struct {
	FromEmail        string
	FromName         string
	ConfigurationSet string
	Environment      string
}

// SESTransport sends mail through Amazon SES v2.
type SESTransport struct {
	api  sesAPI
	from string
	cfg  SESConfig
}

// NewSESTransport wraps an SES API client.
func NewSESTransport(api sesAPI, cfg SESConfig) *SESTransport {
	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = (&mail.Address{Name: cfg.FromName, Address: cfg.FromEmail}).String()
	}
	return &SESTransport{api: api, from: from, cfg: cfg}
}

// NewSESTransportFromConfig builds the SES client from AWS config.
func NewSESTransportFromConfig(awsCfg aws.Config, endpoint string, cfg SESConfig) *SESTransport {
	api := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewSESTransport(api, cfg)
}

// Send delivers msg. Throttling errors wrap ErrThrottled.
func (t *SESTransport) Send(ctx context.Context, msg Message) (string, error) {
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(t.from),
		ReplyToAddresses: []string{t.cfg.FromEmail},
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
				},
			},
		},
		EmailTags: t.tags(msg),
	}
	if t.cfg.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(t.cfg.ConfigurationSet)
	}

	out, err := t.api.SendEmail(ctx, in)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && throttleCodes[apiErr.ErrorCode()] {
			return "", fmt.Errorf("%w: %v", ErrThrottled, err)
		}
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func (t *SESTransport) tags(msg Message) []types.MessageTag {
	tags := []types.MessageTag{
		{Name: aws.String("EmailType"), Value: aws.String("Transactional")},
	}
	add := func(name, value string) {
		value = invalidTagChars.ReplaceAllString(value, "_")
		if value == "" {
			return
		}
		if len(value) > 256 {
			value = value[:256]
		}
		tags = append(tags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}
	add("Environment", t.cfg.Environment)
	add("Kind", msg.Kind)
	add("IdempotencyKey", msg.IdempotencyKey)
	return tags
}
