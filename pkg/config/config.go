/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs to trust for X-Forwarded-For headers

	// RateLimitRPS is the allowed requests per second per client IP.
	// Zero disables rate limiting.
	RateLimitRPS   float64 `yaml:"rateLimitRPS"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

type Frontend struct {
	BaseURL string `yaml:"baseURL"`
	// BrandingName optionally overrides the product name shown in
	// notification templates and the escalation UI.
	BrandingName string `yaml:"brandingName"`
}

// Scheduler controls the periodic evaluation pass over open deadline events.
type Scheduler struct {
	// CronSpec is a cron expression for the evaluation pass, e.g. "0 * * * *".
	CronSpec string `yaml:"cronSpec"`
	// Parallelism bounds how many events are evaluated concurrently per pass.
	Parallelism int `yaml:"parallelism"`
	// Timezone is the IANA zone used for calendar-day overdue math, e.g. "Europe/Berlin".
	// Empty means UTC.
	Timezone string `yaml:"timezone"`
}

type Mail struct {
	Enabled            bool   `yaml:"enabled"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	RetryCount         int    `yaml:"retryCount"`
	RetryBackoffMs     int    `yaml:"retryBackoffMs"`
	QueueSize          int    `yaml:"queueSize"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// Notify holds webhook endpoints for the non-mail notification channels.
type Notify struct {
	SlackWebhookURL    string `yaml:"slackWebhookURL"`
	InAppWebhookURL    string `yaml:"inAppWebhookURL"`
	CalendarWebhookURL string `yaml:"calendarWebhookURL"`
}

// Storage selects the persistence backend.
type Storage struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file when driver is "sqlite".
	Path string `yaml:"path"`
}

// AuditKafka configures a Kafka audit sink.
type AuditKafka struct {
	Brokers             []string `yaml:"brokers"`
	Topic               string   `yaml:"topic"`
	BatchSize           int      `yaml:"batchSize"`
	BatchTimeoutSeconds int      `yaml:"batchTimeoutSeconds"`
	RequiredAcks        int      `yaml:"requiredAcks"`
	Async               bool     `yaml:"async"`
}

// AuditWebhook configures an HTTP audit sink.
type AuditWebhook struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeoutSeconds"`
}

// AuditSink configures one export sink for the audit trail.
type AuditSink struct {
	Name    string       `yaml:"name"`
	Type    string       `yaml:"type"` // "log", "kafka" or "webhook"
	Kafka   AuditKafka   `yaml:"kafka"`
	Webhook AuditWebhook `yaml:"webhook"`
}

// AuditQueue tunes the asynchronous export queue.
type AuditQueue struct {
	Size       int  `yaml:"size"`
	Workers    int  `yaml:"workers"`
	DropOnFull bool `yaml:"dropOnFull"`
}

// Audit configures audit trail export. The trail itself is always
// recorded; export to external sinks is optional.
type Audit struct {
	Enabled bool        `yaml:"enabled"`
	Sinks   []AuditSink `yaml:"sinks"`
	Queue   AuditQueue  `yaml:"queue"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Frontend  Frontend  `yaml:"frontend"`
	Scheduler Scheduler `yaml:"scheduler"`
	Mail      Mail      `yaml:"mail"`
	Notify    Notify    `yaml:"notify"`
	Storage   Storage   `yaml:"storage"`
	Audit     Audit     `yaml:"audit"`
}

// Defaults returns a Config with sensible defaults for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			ListenAddress:  ":8080",
			RateLimitRPS:   20,
			RateLimitBurst: 50,
		},
		Scheduler: Scheduler{
			CronSpec:    "0 * * * *",
			Parallelism: 8,
		},
		Mail: Mail{
			Port:           587,
			RetryCount:     3,
			RetryBackoffMs: 500,
			QueueSize:      256,
		},
		Storage: Storage{
			Driver: "memory",
		},
	}
}

// Load loads the escalation engine configuration from a file path.
// If configPath is empty, defaults to "./config.yaml". The path can
// also be overridden via the ESCALATION_CONFIG_PATH environment variable.
func Load(configPath ...string) (Config, error) {
	var path string

	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	} else if env := os.Getenv("ESCALATION_CONFIG_PATH"); env != "" {
		path = env
	} else {
		path = "./config.yaml"
	}

	config := Defaults()

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open escalation config file %s: %v", path, err)
	}

	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
	}
	return config, nil
}
