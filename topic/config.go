package topic

import (
	"github.com/gmbyapa/ktopics/pkg/orderedmap"
)

// Config is one topic configuration parameter.
type Config struct {
	Name         string `json:"name"`
	Value        string `json:"value"`
	DefaultValue string `json:"defaultValue"`
}

// IsDefault reports whether the parameter still carries the cluster default.
func (c Config) IsDefault() bool {
	return c.Value == c.DefaultValue
}

// ConfigRegistry indexes a topic's configuration by parameter name while keeping the order
// of the listing it was built from.
type ConfigRegistry struct {
	byName *orderedmap.Map[string, Config]
}

// NewConfigRegistry builds the index. A parameter listed twice is rejected with a
// DuplicateKeyError.
func NewConfigRegistry(configs []Config) (*ConfigRegistry, error) {
	byName := orderedmap.New[string, Config]()
	for _, c := range configs {
		if byName.Has(c.Name) {
			return nil, &DuplicateKeyError{Key: c.Name}
		}
		byName.Set(c.Name, c)
	}

	return &ConfigRegistry{byName: byName}, nil
}

func (r *ConfigRegistry) Get(name string) (Config, error) {
	c, ok := r.byName.Get(name)
	if !ok {
		return Config{}, notFound(`config`, name)
	}

	return c, nil
}

// All returns the parameters in listing order.
func (r *ConfigRegistry) All() []Config {
	return r.byName.Values()
}

func (r *ConfigRegistry) IsDefault(name string) (bool, error) {
	c, err := r.Get(name)
	if err != nil {
		return false, err
	}

	return c.IsDefault(), nil
}

// Overridden returns the parameters whose value differs from the cluster default.
func (r *ConfigRegistry) Overridden() []Config {
	var configs []Config
	r.byName.Range(func(_ string, c Config) bool {
		if !c.IsDefault() {
			configs = append(configs, c)
		}
		return true
	})

	return configs
}

func (r *ConfigRegistry) Len() int {
	return r.byName.Len()
}

// CustomParamOption is a configuration parameter users may override on a topic.
type CustomParamOption struct {
	Name         string `json:"name"`
	DefaultValue string `json:"defaultValue"`
}

var customParamOptions = []CustomParamOption{
	{Name: `compression.type`, DefaultValue: `producer`},
	{Name: `leader.replication.throttled.replicas`, DefaultValue: ``},
	{Name: `message.downconversion.enable`, DefaultValue: `true`},
	{Name: `segment.jitter.ms`, DefaultValue: `0`},
	{Name: `flush.ms`, DefaultValue: `9223372036854775807`},
	{Name: `follower.replication.throttled.replicas`, DefaultValue: ``},
	{Name: `segment.bytes`, DefaultValue: `1073741824`},
	{Name: `flush.messages`, DefaultValue: `9223372036854775807`},
	{Name: `message.format.version`, DefaultValue: `2.3-IV1`},
	{Name: `file.delete.delay.ms`, DefaultValue: `60000`},
	{Name: `max.compaction.lag.ms`, DefaultValue: `9223372036854775807`},
	{Name: `min.compaction.lag.ms`, DefaultValue: `0`},
	{Name: `message.timestamp.type`, DefaultValue: `CreateTime`},
	{Name: `preallocate`, DefaultValue: `false`},
	{Name: `min.cleanable.dirty.ratio`, DefaultValue: `0.5`},
	{Name: `index.interval.bytes`, DefaultValue: `4096`},
	{Name: `unclean.leader.election.enable`, DefaultValue: `true`},
	{Name: `delete.retention.ms`, DefaultValue: `86400000`},
	{Name: `segment.ms`, DefaultValue: `604800000`},
	{Name: `message.timestamp.difference.max.ms`, DefaultValue: `9223372036854775807`},
	{Name: `segment.index.bytes`, DefaultValue: `10485760`},
}

// DefaultCustomParamOptions returns the catalog of known custom parameters.
func DefaultCustomParamOptions() []CustomParamOption {
	opts := make([]CustomParamOption, len(customParamOptions))
	copy(opts, customParamOptions)
	return opts
}

func FindCustomParamOption(name string) (CustomParamOption, error) {
	for _, o := range customParamOptions {
		if o.Name == name {
			return o, nil
		}
	}

	return CustomParamOption{}, notFound(`custom param option`, name)
}

// namedDefaults are the broker defaults of the settings edited through the named form fields.
var namedDefaults = map[string]string{
	`cleanup.policy`:      `delete`,
	`retention.ms`:        `604800000`,
	`retention.bytes`:     `-1`,
	`max.message.bytes`:   `1048588`,
	`min.insync.replicas`: `1`,
}

// KnownDefault returns the stock broker default of a topic setting, used when the cluster does
// not report one.
func KnownDefault(name string) (string, bool) {
	if v, ok := namedDefaults[name]; ok {
		return v, true
	}

	opt, err := FindCustomParamOption(name)
	if err != nil {
		return ``, false
	}

	return opt.DefaultValue, true
}
