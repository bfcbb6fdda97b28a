// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package pdnskafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// Defaults applied to a zero Config.
const (
	DefaultQueryTopic              = "passivedns.query"
	DefaultNXDomainTopic           = "passivedns.nxdomain"
	DefaultClientID                = "passivedns"
	DefaultMembershipPath          = "/brokers/ids"
	DefaultZooKeeperSessionTimeout = 10 * time.Second
	DefaultQueueCapacity           = 10000
	DefaultQueueFullWait           = time.Second
	DefaultFlushTimeout            = 5 * time.Second
	DefaultMaxRecordBytes          = 1000000
)

// maxTopicLength is the longest topic name Kafka accepts.
const maxTopicLength = 249

// Config is everything needed to start a Feed. It is owned by the Feed for
// its lifetime and must not be modified after Start.
type Config struct {
	// Brokers is the static bootstrap broker list ("host:port"). Entries may
	// be comma-separated. Used when Discovery is false.
	Brokers []string `toml:"brokers"`

	// Discovery enables broker discovery through ZooKeeper. When set, Brokers
	// is ignored and ZooKeeper is required.
	Discovery bool `toml:"discovery"`

	// ZooKeeper is the list of coordination service addresses.
	ZooKeeper []string `toml:"zookeeper"`

	// ZooKeeperSessionTimeout is the coordination session timeout.
	// Default: 10s.
	ZooKeeperSessionTimeout time.Duration `toml:"zookeeper_session_timeout"`

	// MembershipPath is the znode whose children are the live brokers.
	// Default: "/brokers/ids".
	MembershipPath string `toml:"membership_path"`

	// QueryTopic receives resolved query/answer records.
	// Default: "passivedns.query".
	QueryTopic string `toml:"query_topic"`

	// NXDomainTopic receives NXDOMAIN records.
	// Default: "passivedns.nxdomain".
	NXDomainTopic string `toml:"nxdomain_topic"`

	// ClientID identifies the producer to the brokers. Default: "passivedns".
	ClientID string `toml:"client_id"`

	// QueueCapacity bounds the number of records held locally awaiting
	// delivery. Default: 10000.
	QueueCapacity int `toml:"queue_capacity"`

	// QueueFullWait bounds each wait for queue space before the enqueue is
	// retried. Default: 1s.
	QueueFullWait time.Duration `toml:"queue_full_wait"`

	// FlushTimeout bounds the flush of buffered records on shutdown when the
	// caller's context has no deadline. Default: 5s.
	FlushTimeout time.Duration `toml:"flush_timeout"`

	// MaxRecordBytes is the largest payload accepted. Default: 1000000.
	MaxRecordBytes int `toml:"max_record_bytes"`

	// RequestTimeout is added to broker request timeouts. Zero keeps the
	// franz-go default.
	RequestTimeout time.Duration `toml:"request_timeout"`

	// MaxRetries limits request retries. Zero keeps the franz-go default.
	MaxRetries int `toml:"max_retries"`

	// Linger sets the batching delay. Zero disables lingering.
	Linger time.Duration `toml:"linger"`

	// Acks controls broker acknowledgments ("all", "leader", "none").
	Acks Acks `toml:"acks"`

	// Compression selects the batch codec ("snappy", "gzip", "lz4", "zstd", "none").
	Compression Compression `toml:"compression"`

	// Headers are added to every record.
	Headers map[string]string `toml:"headers"`

	// VerifyStreams checks each topic with a metadata request when its
	// stream is opened.
	VerifyStreams bool `toml:"verify_streams"`

	// AllowAutoTopicCreation lets the brokers create missing topics.
	AllowAutoTopicCreation bool `toml:"allow_auto_topic_creation"`

	SASL   SASLConfig   `toml:"sasl"`
	TLS    TLSConfig    `toml:"tls"`
	Syslog SyslogConfig `toml:"syslog"`

	// LogLevel is the diagnostic log level ("error", "warn", "info", "debug").
	LogLevel string `toml:"log_level"`
}

// SASLConfig configures broker authentication.
type SASLConfig struct {
	// Mechanism is "PLAIN", "SCRAM-SHA-256" or "SCRAM-SHA-512". Empty
	// disables SASL.
	Mechanism string `toml:"mechanism"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// TLSConfig configures TLS to the brokers.
type TLSConfig struct {
	Enable             bool   `toml:"enable"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// SyslogConfig configures the operational syslog sink.
type SyslogConfig struct {
	Enable  bool   `toml:"enable"`
	Network string `toml:"network"`
	Address string `toml:"address"`
	Tag     string `toml:"tag"`
}

// LoadConfig reads a TOML config file.
func LoadConfig(name string) (Config, error) {
	var c Config
	f, err := os.Open(name)
	if err != nil {
		return c, err
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(&c); err != nil {
		return c, errors.Join(ErrValidation, fmt.Errorf("decoding %s: %w", name, err))
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.QueryTopic == "" {
		c.QueryTopic = DefaultQueryTopic
	}
	if c.NXDomainTopic == "" {
		c.NXDomainTopic = DefaultNXDomainTopic
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.MembershipPath == "" {
		c.MembershipPath = DefaultMembershipPath
	}
	if c.ZooKeeperSessionTimeout <= 0 {
		c.ZooKeeperSessionTimeout = DefaultZooKeeperSessionTimeout
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.QueueFullWait <= 0 {
		c.QueueFullWait = DefaultQueueFullWait
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.MaxRecordBytes <= 0 {
		c.MaxRecordBytes = DefaultMaxRecordBytes
	}
	if c.Acks == "" {
		c.Acks = AcksAll
	}
	c.MembershipPath = strings.TrimRight(c.MembershipPath, "/")
}

// validate checks the configuration after defaults were applied.
func (c *Config) validate() error {
	if c.Discovery {
		if len(c.ZooKeeper) == 0 {
			return errors.Join(ErrValidation, fmt.Errorf("zookeeper addresses are required when discovery is enabled"))
		}
		if !strings.HasPrefix(c.MembershipPath, "/") {
			return errors.Join(ErrValidation, fmt.Errorf("membership path %q must be absolute", c.MembershipPath))
		}
	} else {
		set, err := ParseBrokerList(c.Brokers...)
		if err != nil {
			return err
		}
		if len(set) == 0 {
			return errors.Join(ErrValidation, fmt.Errorf("brokers list is required"))
		}
	}

	for _, topic := range []string{c.QueryTopic, c.NXDomainTopic} {
		if err := validateTopic(topic); err != nil {
			return err
		}
	}
	if c.QueryTopic == c.NXDomainTopic {
		return errors.Join(ErrValidation, fmt.Errorf("query and nxdomain topics must differ, both are %q", c.QueryTopic))
	}

	if err := c.Acks.validate(); err != nil {
		return err
	}
	if err := c.Compression.validate(); err != nil {
		return err
	}

	for key := range c.Headers {
		if key == "" {
			return errors.Join(ErrValidation, fmt.Errorf("header key must not be empty"))
		}
	}

	if _, err := c.SASL.mechanism(); err != nil {
		return err
	}
	return nil
}

// validateTopic applies Kafka's topic naming rules.
func validateTopic(topic string) error {
	if topic == "" {
		return errors.Join(ErrValidation, fmt.Errorf("topic must not be empty"))
	}
	if topic == "." || topic == ".." {
		return errors.Join(ErrValidation, fmt.Errorf("topic %q is not allowed", topic))
	}
	if len(topic) > maxTopicLength {
		return errors.Join(ErrValidation, fmt.Errorf("topic %q is longer than %d characters", topic, maxTopicLength))
	}
	for _, r := range topic {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-':
		default:
			return errors.Join(ErrValidation, fmt.Errorf("topic %q contains illegal character %q", topic, r))
		}
	}
	return nil
}

// mechanism returns the SASL mechanism, or nil if SASL is disabled.
func (s SASLConfig) mechanism() (sasl.Mechanism, error) {
	switch strings.ToUpper(s.Mechanism) {
	case "":
		return nil, nil
	case "PLAIN":
		return plain.Auth{User: s.Username, Pass: s.Password}.AsMechanism(), nil
	case "SCRAM-SHA-256":
		return scram.Auth{User: s.Username, Pass: s.Password}.AsSha256Mechanism(), nil
	case "SCRAM-SHA-512":
		return scram.Auth{User: s.Username, Pass: s.Password}.AsSha512Mechanism(), nil
	}
	return nil, errors.Join(ErrValidation,
		fmt.Errorf("sasl mechanism '%s' is invalid: must be 'PLAIN', 'SCRAM-SHA-256' or 'SCRAM-SHA-512'", s.Mechanism))
}

// config builds the *tls.Config, or nil if TLS is disabled.
func (t TLSConfig) config() (*tls.Config, error) {
	if !t.Enable {
		return nil, nil
	}

	cfg := &tls.Config{
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // operator opt-in
		MinVersion:         tls.VersionTLS12,
	}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, errors.Join(ErrValidation, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Join(ErrValidation, fmt.Errorf("no certificates found in %s", t.CAFile))
		}
		cfg.RootCAs = pool
	}

	if t.CertFile != "" || t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, errors.Join(ErrValidation, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
