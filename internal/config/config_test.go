package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_QueueDefaults(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("QUEUE_WAIT_TIME", "")
	t.Setenv("QUEUE_BATCH_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.QueueBackend != QueueSQS {
		t.Errorf("QueueBackend = %q, want %q", cfg.QueueBackend, QueueSQS)
	}
	if cfg.QueueWaitTime != 20*time.Second {
		t.Errorf("QueueWaitTime = %s, want 20s", cfg.QueueWaitTime)
	}
	if cfg.QueueBatchSize != 10 {
		t.Errorf("QueueBatchSize = %d, want 10", cfg.QueueBatchSize)
	}
	if cfg.QueueVisibilityTimeout != 60*time.Second {
		t.Errorf("QueueVisibilityTimeout = %s, want 60s", cfg.QueueVisibilityTimeout)
	}
	if cfg.WorkerIdleCooldown != 5*time.Second {
		t.Errorf("WorkerIdleCooldown = %s, want 5s", cfg.WorkerIdleCooldown)
	}
}

func TestConfig_DurationFromEnv(t *testing.T) {
	t.Setenv("QUEUE_WAIT_TIME", "10")
	t.Setenv("MAIL_TIMEOUT", "2500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.QueueWaitTime != 10*time.Second {
		t.Errorf("QueueWaitTime = %s, want 10s", cfg.QueueWaitTime)
	}
	if cfg.MailTimeout != 2500*time.Millisecond {
		t.Errorf("MailTimeout = %s, want 2.5s", cfg.MailTimeout)
	}
}

func TestConfig_ListFromEnv(t *testing.T) {
	t.Setenv("PURGE_STATUSES", " rejected, accepted ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.PurgeStatuses) != 2 || cfg.PurgeStatuses[0] != "rejected" || cfg.PurgeStatuses[1] != "accepted" {
		t.Errorf("PurgeStatuses = %v, want [rejected accepted]", cfg.PurgeStatuses)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name: "memory and log is valid",
			mutate: func(c *Config) {
				c.QueueBackend = QueueMemory
				c.MailTransport = MailLog
			},
		},
		{
			name: "sqs without queue url",
			mutate: func(c *Config) {
				c.QueueBackend = QueueSQS
				c.SQSQueueURL = ""
				c.MailTransport = MailLog
			},
			wantErr: "SQS_QUEUE_URL",
		},
		{
			name: "ses without sender",
			mutate: func(c *Config) {
				c.QueueBackend = QueueMemory
				c.MailTransport = MailSES
				c.SESFromEmail = ""
			},
			wantErr: "SES_FROM_EMAIL",
		},
		{
			name: "unknown backend",
			mutate: func(c *Config) {
				c.QueueBackend = "kafka"
				c.MailTransport = MailLog
			},
			wantErr: "unknown QUEUE_BACKEND",
		},
		{
			name: "batch too large",
			mutate: func(c *Config) {
				c.QueueBackend = QueueMemory
				c.MailTransport = MailLog
				c.QueueBatchSize = 11
			},
			wantErr: "QUEUE_BATCH_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_OpsAPIDefaults(t *testing.T) {
	t.Setenv("HTTP_HOST", "")
	t.Setenv("OPS_API_TOKEN", "")
	t.Setenv("QUEUE_ACK_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPHost != "127.0.0.1" {
		t.Errorf("HTTPHost = %q, want loopback", cfg.HTTPHost)
	}
	if cfg.OpsAPIToken != "" {
		t.Errorf("OpsAPIToken = %q, want empty", cfg.OpsAPIToken)
	}
	if cfg.AckTimeout != 10*time.Second {
		t.Errorf("AckTimeout = %s, want 10s", cfg.AckTimeout)
	}
}
