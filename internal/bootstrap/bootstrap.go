// Package bootstrap builds the queue client, mail transport and renderer
// selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/DIEGHOST64/Prisma/internal/config"
	"github.com/DIEGHOST64/Prisma/internal/logger"
	"github.com/DIEGHOST64/Prisma/internal/mail"
	natsclient "github.com/DIEGHOST64/Prisma/internal/nats"
	"github.com/DIEGHOST64/Prisma/internal/queue"
	"github.com/DIEGHOST64/Prisma/internal/render"
)

// LoadAWS loads the default AWS credential chain for the configured region.
func LoadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// OpenQueue connects to the configured queue backend.
func OpenQueue(ctx context.Context, cfg *config.Config, log *logger.Logger) (queue.Client, error) {
	switch cfg.QueueBackend {
	case config.QueueSQS:
		awsCfg, err := LoadAWS(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("queue_url", cfg.SQSQueueURL).Msg("using sqs queue")
		return queue.NewSQSClientFromConfig(awsCfg, cfg.SQSQueueURL, cfg.AWSEndpointURL), nil

	case config.QueueNATS:
		nc, err := natsclient.New(ctx, cfg.NatsURL)
		if err != nil {
			return nil, err
		}
		js, err := queue.NewJetStreamClient(ctx, nc, queue.JetStreamConfig{
			Stream:            cfg.NatsStream,
			Subject:           cfg.NatsSubject,
			Consumer:          cfg.NatsConsumer,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			MaxReceives:       cfg.QueueMaxReceives,
		})
		if err != nil {
			nc.Close()
			return nil, err
		}
		log.Info().Str("stream", cfg.NatsStream).Str("subject", cfg.NatsSubject).Msg("using nats jetstream queue")
		return js, nil

	case config.QueueRedis:
		rc, err := queue.NewRedisClientFromURL(ctx, cfg.RedisURL, cfg.RedisQueue, cfg.QueueMaxReceives)
		if err != nil {
			return nil, err
		}
		log.Info().Str("queue", cfg.RedisQueue).Msg("using redis queue")
		return rc, nil

	case config.QueueMemory:
		log.Warn().Msg("using in-process memory queue; messages are lost on restart")
		return queue.NewMemoryClient(cfg.QueueMaxReceives), nil

	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

// OpenMailTransport builds the configured transport wrapped in the send-rate
// limiter.
func OpenMailTransport(ctx context.Context, cfg *config.Config, log *logger.Logger) (mail.Transport, error) {
	var transport mail.Transport

	switch cfg.MailTransport {
	case config.MailSES:
		awsCfg, err := LoadAWS(ctx, cfg)
		if err != nil {
			return nil, err
		}
		transport = mail.NewSESTransportFromConfig(awsCfg, cfg.AWSEndpointURL, mail.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.SESFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
			Environment:      cfg.Environment,
		})
		log.Info().Str("from", cfg.SESFromEmail).Msg("using ses mail transport")

	case config.MailLog:
		transport = mail.NewLogTransport(log.Component("mail"))
		log.Warn().Msg("using log mail transport; no email will be delivered")

	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}

	if cfg.MailRatePerSec <= 0 {
		return transport, nil
	}
	return mail.NewRateLimited(transport, mail.NewRateLimiter(cfg.MailRatePerSec, cfg.MailRateBurst)), nil
}

// OpenRenderer uses the catalog file when configured, the embedded one otherwise.
func OpenRenderer(cfg *config.Config) (*render.Renderer, error) {
	if cfg.StatusCatalogPath == "" {
		return render.New()
	}

	data, err := os.ReadFile(cfg.StatusCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("read status catalog: %w", err)
	}
	catalog, err := render.ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	return render.NewWithCatalog(catalog)
}
