// Package config holds the application configuration. Values are read from an optional file
// and KTOPICS_ prefixed environment variables on top of the NewConfig defaults.
package config

import (
	"strings"
	"time"

	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type AdminAdaptor string

const (
	AdminAdaptorSarama AdminAdaptor = `sarama`
	AdminAdaptorLibrd  AdminAdaptor = `librd`
)

type FetcherAdaptor string

const (
	FetcherAdaptorSarama  FetcherAdaptor = `sarama`
	FetcherAdaptorKafkaGo FetcherAdaptor = `kafkago`
)

const EnvPrefix = `KTOPICS`

type Config struct {
	// BootstrapServers a list of kafka Brokers
	BootstrapServers []string
	// KafkaVersion used by the sarama adaptors (eg: 2.8.0)
	KafkaVersion string
	Admin        struct {
		Adaptor AdminAdaptor
		// Timeout of a single admin request
		Timeout time.Duration
	}
	Refresh struct {
		Interval time.Duration
	}
	Messages struct {
		Fetcher FetcherAdaptor
		// WatchTopics are consumed from start up
		WatchTopics []string
		// PerFetch max messages read per partition on every refresh
		PerFetch int
		// Max size of the message buffer, the oldest messages are evicted first
		Max int
	}
	Http struct {
		Enabled bool
		// Host http server host(eg: :8080)
		Host           string
		AllowedOrigins []string
	}
	// MetricsReporter default metrics reporter(default: NoopReporter)
	MetricsReporter metrics.Reporter `mapstructure:"-"`
	// Logger default logger(default: NoopLogger)
	Logger log.Logger `mapstructure:"-"`
}

func NewConfig() *Config {
	c := &Config{
		BootstrapServers: []string{`localhost:9092`},
		KafkaVersion:     `2.8.0`,
	}
	c.Admin.Adaptor = AdminAdaptorSarama
	c.Admin.Timeout = 10 * time.Second
	c.Refresh.Interval = 10 * time.Second
	c.Messages.Fetcher = FetcherAdaptorSarama
	c.Messages.PerFetch = 20
	c.Messages.Max = 1000
	c.Http.Enabled = true
	c.Http.Host = `:8080`

	c.MetricsReporter = metrics.NoopReporter()
	c.Logger = log.NewNoopLogger()

	return c
}

// Load reads path (skipped when empty) and the environment over the defaults.
func Load(path string) (*Config, error) {
	c := NewConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))
	v.AutomaticEnv()

	// every key needs a default to be visible to Unmarshal through the environment
	v.SetDefault(`bootstrapServers`, c.BootstrapServers)
	v.SetDefault(`kafkaVersion`, c.KafkaVersion)
	v.SetDefault(`admin.adaptor`, string(c.Admin.Adaptor))
	v.SetDefault(`admin.timeout`, c.Admin.Timeout)
	v.SetDefault(`refresh.interval`, c.Refresh.Interval)
	v.SetDefault(`messages.fetcher`, string(c.Messages.Fetcher))
	v.SetDefault(`messages.watchTopics`, c.Messages.WatchTopics)
	v.SetDefault(`messages.perFetch`, c.Messages.PerFetch)
	v.SetDefault(`messages.max`, c.Messages.Max)
	v.SetDefault(`http.enabled`, c.Http.Enabled)
	v.SetDefault(`http.host`, c.Http.Host)
	v.SetDefault(`http.allowedOrigins`, c.Http.AllowedOrigins)

	if path != `` {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, `cannot read config file %s`, path)
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, `cannot decode config`)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	if len(c.BootstrapServers) < 1 {
		return errors.New(`[BootstrapServers] cannot be empty`)
	}

	switch c.Admin.Adaptor {
	case AdminAdaptorSarama, AdminAdaptorLibrd:
	default:
		return errors.Errorf(`[Admin.Adaptor] unknown adaptor %s`, c.Admin.Adaptor)
	}

	switch c.Messages.Fetcher {
	case FetcherAdaptorSarama, FetcherAdaptorKafkaGo:
	default:
		return errors.Errorf(`[Messages.Fetcher] unknown adaptor %s`, c.Messages.Fetcher)
	}

	if c.Admin.Timeout <= 0 {
		return errors.New(`[Admin.Timeout] needs to be greater than zero`)
	}

	if c.Refresh.Interval <= 0 {
		return errors.New(`[Refresh.Interval] needs to be greater than zero`)
	}

	if c.Messages.PerFetch < 1 {
		return errors.New(`[Messages.PerFetch] needs to be greater than zero`)
	}

	if c.Messages.Max < 0 {
		return errors.New(`[Messages.Max] cannot be negative`)
	}

	if c.Http.Enabled && c.Http.Host == `` {
		return errors.New(`[Http.Host] cannot be empty when Http.Enabled`)
	}

	return nil
}
