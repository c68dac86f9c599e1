package topic

import (
	"errors"
	"fmt"
	"strings"
)

// ConsistencyError reports a partition/replica payload that breaks the single leader rule or
// otherwise cannot describe a real partition.
type ConsistencyError struct {
	Topic     string
	Partition int32
	Reason    string
}

func (e *ConsistencyError) Error() string {
	if e.Topic == `` {
		return fmt.Sprintf(`inconsistent partition %d: %s`, e.Partition, e.Reason)
	}

	return fmt.Sprintf(`inconsistent partition %s[%d]: %s`, e.Topic, e.Partition, e.Reason)
}

// DuplicateKeyError reports a second configuration entry with the same name in one listing.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf(`duplicate key [%s]`, e.Key)
}

// NotFoundError is returned by lookups that miss.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf(`%s [%s] not found`, e.Kind, e.Key)
}

// ListingError collects the topics of a listing that failed validation.
type ListingError struct {
	Errors []error
}

func (e *ListingError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}

	return fmt.Sprintf(`%d topic(s) rejected: %s`, len(e.Errors), strings.Join(msgs, `; `))
}

// As matches target against every collected error.
func (e *ListingError) As(target interface{}) bool {
	for _, err := range e.Errors {
		if errors.As(err, target) {
			return true
		}
	}

	return false
}

func notFound(kind string, key interface{}) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}
