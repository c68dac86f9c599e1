// Package form models the topic creation and edit form and turns it into the payload sent to
// the cluster.
package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gmbyapa/ktopics/topic"
)

type CleanupPolicy string

const (
	CleanupPolicyDelete        CleanupPolicy = `delete`
	CleanupPolicyCompact       CleanupPolicy = `compact`
	CleanupPolicyCompactDelete CleanupPolicy = `compact,delete`
)

// ParseCleanupPolicy accepts a single policy or the comma separated combination of both, in
// any order.
func ParseCleanupPolicy(s string) (CleanupPolicy, error) {
	var compact, del bool
	for _, part := range strings.Split(s, `,`) {
		switch CleanupPolicy(strings.TrimSpace(part)) {
		case CleanupPolicyCompact:
			compact = true
		case CleanupPolicyDelete:
			del = true
		default:
			return ``, errors.Errorf(`unknown cleanup policy [%s]`, s)
		}
	}

	switch {
	case compact && del:
		return CleanupPolicyCompactDelete, nil
	case compact:
		return CleanupPolicyCompact, nil
	default:
		return CleanupPolicyDelete, nil
	}
}

// Kafka configuration keys backing the named form fields.
const (
	ConfigCleanupPolicy     = `cleanup.policy`
	ConfigRetentionMs       = `retention.ms`
	ConfigRetentionBytes    = `retention.bytes`
	ConfigMaxMessageBytes   = `max.message.bytes`
	ConfigMinInSyncReplicas = `min.insync.replicas`
)

const (
	DefaultPartitions        = 1
	DefaultReplicationFactor = 1
	DefaultMinInSyncReplicas = 1
	DefaultRetentionMs       = int64(604800000)
	DefaultRetentionBytes    = int64(-1)
	DefaultMaxMessageBytes   = int64(1000012)
)

// Data is the editable state of a topic form.
type Data struct {
	Name              string        `json:"name"`
	Partitions        int32         `json:"partitions"`
	ReplicationFactor int16         `json:"replicationFactor"`
	MinInSyncReplicas int32         `json:"minInSyncReplicas"`
	CleanupPolicy     CleanupPolicy `json:"cleanupPolicy"`
	RetentionMs       int64         `json:"retentionMs"`
	RetentionBytes    int64         `json:"retentionBytes"`
	MaxMessageBytes   int64         `json:"maxMessageBytes"`
	CustomParams      *CustomParams `json:"customParams"`
}

// NewData returns an empty creation form.
func NewData(options ...CustomParamsOption) *Data {
	return &Data{
		Partitions:        DefaultPartitions,
		ReplicationFactor: DefaultReplicationFactor,
		MinInSyncReplicas: DefaultMinInSyncReplicas,
		CleanupPolicy:     CleanupPolicyDelete,
		RetentionMs:       DefaultRetentionMs,
		RetentionBytes:    DefaultRetentionBytes,
		MaxMessageBytes:   DefaultMaxMessageBytes,
		CustomParams:      NewCustomParams(options...),
	}
}

// FromTopic pre-fills an edit form from a known topic. Named fields are read from the topic
// configuration and every other overridden parameter becomes a custom param.
func FromTopic(t topic.DetailedTopic, options ...CustomParamsOption) (*Data, error) {
	d := NewData(options...)
	d.Name = t.Name
	if t.PartitionCount != nil {
		d.Partitions = *t.PartitionCount
	} else if t.Partitions != nil {
		d.Partitions = int32(len(t.Partitions))
	}
	if t.ReplicationFactor != nil {
		d.ReplicationFactor = int16(*t.ReplicationFactor)
	}

	registry, err := topic.NewConfigRegistry(t.Config)
	if err != nil {
		return nil, errors.Wrapf(err, `cannot read configuration of topic [%s]`, t.Name)
	}

	for _, c := range registry.All() {
		err := d.setNamed(c)
		switch {
		case err == nil:
			continue
		case err == errUnknownCleanupPolicy:
			// carried verbatim, an empty policy is left out of the payload
			d.CleanupPolicy = ``
		case err != errNotNamed:
			return nil, errors.Wrapf(err, `invalid value for [%s] on topic [%s]`, c.Name, t.Name)
		case c.IsDefault():
			continue
		}

		idx := d.CustomParams.Add()
		if err := d.CustomParams.Update(idx, CustomParam{Name: c.Name, Value: c.Value}); err != nil {
			return nil, err
		}
	}

	return d, nil
}

var (
	errNotNamed             = fmt.Errorf(`not a named form field`)
	errUnknownCleanupPolicy = fmt.Errorf(`unknown cleanup policy`)
)

func (d *Data) setNamed(c topic.Config) error {
	var err error
	switch c.Name {
	case ConfigCleanupPolicy:
		policy, perr := ParseCleanupPolicy(c.Value)
		if perr != nil {
			return errUnknownCleanupPolicy
		}
		d.CleanupPolicy = policy
	case ConfigRetentionMs:
		d.RetentionMs, err = strconv.ParseInt(c.Value, 10, 64)
	case ConfigRetentionBytes:
		d.RetentionBytes, err = strconv.ParseInt(c.Value, 10, 64)
	case ConfigMaxMessageBytes:
		d.MaxMessageBytes, err = strconv.ParseInt(c.Value, 10, 64)
	case ConfigMinInSyncReplicas:
		var v int64
		v, err = strconv.ParseInt(c.Value, 10, 32)
		d.MinInSyncReplicas = int32(v)
	default:
		return errNotNamed
	}

	return err
}

// FormattedData is the submission payload: Data with its custom params flattened.
type FormattedData struct {
	Name              string          `json:"name"`
	Partitions        int32           `json:"partitions"`
	ReplicationFactor int16           `json:"replicationFactor"`
	MinInSyncReplicas int32           `json:"minInSyncReplicas"`
	CleanupPolicy     CleanupPolicy   `json:"cleanupPolicy"`
	RetentionMs       int64           `json:"retentionMs"`
	RetentionBytes    int64           `json:"retentionBytes"`
	MaxMessageBytes   int64           `json:"maxMessageBytes"`
	CustomParams      FormattedParams `json:"customParams"`
}

// Format flattens the form. It never fails.
func (d *Data) Format() FormattedData {
	params := FormattedParams{}
	if d.CustomParams != nil {
		params = d.CustomParams.Flatten()
	}

	return FormattedData{
		Name:              d.Name,
		Partitions:        d.Partitions,
		ReplicationFactor: d.ReplicationFactor,
		MinInSyncReplicas: d.MinInSyncReplicas,
		CleanupPolicy:     d.CleanupPolicy,
		RetentionMs:       d.RetentionMs,
		RetentionBytes:    d.RetentionBytes,
		MaxMessageBytes:   d.MaxMessageBytes,
		CustomParams:      params,
	}
}

// TopicConfigs returns the Kafka configuration entries of the payload. Named fields take
// precedence over custom params using the same key.
func (f FormattedData) TopicConfigs() map[string]string {
	configs := make(map[string]string, len(f.CustomParams)+5)
	for k, v := range f.CustomParams {
		configs[k] = v
	}

	if f.CleanupPolicy != `` {
		configs[ConfigCleanupPolicy] = string(f.CleanupPolicy)
	}
	configs[ConfigRetentionMs] = strconv.FormatInt(f.RetentionMs, 10)
	configs[ConfigRetentionBytes] = strconv.FormatInt(f.RetentionBytes, 10)
	configs[ConfigMaxMessageBytes] = strconv.FormatInt(f.MaxMessageBytes, 10)
	configs[ConfigMinInSyncReplicas] = strconv.FormatInt(int64(f.MinInSyncReplicas), 10)

	return configs
}
