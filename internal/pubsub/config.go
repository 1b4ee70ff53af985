package pubsub

import (
	"fmt"
	"strconv"
)

// Recognized node configuration field names. The submitted form is a flat
// mapping of field name to values; how it was transported is not the
// engine's concern.
const (
	FieldPersistItems      = "pubsub#persist_items"
	FieldMaxPayloadSize    = "pubsub#max_payload_size"
	FieldSendItemSubscribe = "pubsub#send_item_subscribe"
	FieldMaxItems          = "pubsub#max_items"
)

const (
	defaultMaxItems       = 50
	defaultMaxPayloadSize = 5120
)

// ConfigField is one submitted configuration field.
type ConfigField struct {
	Name   string
	Values []string
}

// leafFieldHandlers is the closed set of configuration fields a leaf node
// recognizes, each with its own parse-and-apply function. Unknown fields
// are ignored, not rejected, so newer clients can submit fields this
// version does not know about.
var leafFieldHandlers = map[string]func(*LeafNode, ConfigField) error{
	FieldPersistItems: func(n *LeafNode, field ConfigField) error {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.persistItems = boolValue(field, true)
		return nil
	},
	FieldMaxPayloadSize: func(n *LeafNode, field ConfigField) error {
		size, err := intValue(field, defaultMaxPayloadSize)
		if err != nil {
			return err
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		n.maxPayloadSize = size
		return nil
	},
	FieldSendItemSubscribe: func(n *LeafNode, field ConfigField) error {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.sendItemSubscribe = boolValue(field, true)
		return nil
	},
}

// Configure applies a single configuration field. Unrecognized fields are
// ignored. A recognized field with an unparsable value fails with
// ErrInvalidFieldValue and leaves the node unchanged.
func (n *LeafNode) Configure(field ConfigField) error {
	handler, ok := leafFieldHandlers[field.Name]
	if !ok {
		return nil
	}
	if err := handler(n, field); err != nil {
		return err
	}
	n.log.WithField("field", field.Name).Debug("applied configuration field")
	return nil
}

// PostConfigure enforces the retention invariant after a full form has
// been applied: a node that no longer persists items retains exactly the
// last published item, whatever max-items value was submitted. Persistent
// nodes adopt the submitted bound, clamped to at least one so retention
// trimming stays in force.
func (n *LeafNode) PostConfigure(form []ConfigField) error {
	maxItems := 0
	submitted := false
	for _, field := range form {
		if field.Name == FieldMaxItems {
			value, err := intValue(field, defaultMaxItems)
			if err != nil {
				return err
			}
			maxItems = value
			submitted = true
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.persistItems {
		n.maxItems = 1
	} else if submitted {
		if maxItems < 1 {
			maxItems = 1
		}
		n.maxItems = maxItems
	}
	return nil
}

// ApplyConfigForm applies a whole configuration form: every field in
// order, then the post-configuration invariants. The first failing field
// aborts the submission.
func (n *LeafNode) ApplyConfigForm(form []ConfigField) error {
	for _, field := range form {
		if err := n.Configure(field); err != nil {
			return err
		}
	}
	return n.PostConfigure(form)
}

func firstValue(field ConfigField) (string, bool) {
	if len(field.Values) == 0 {
		return "", false
	}
	return field.Values[0], true
}

// boolValue parses the field's first value. Missing values take the
// default; "1" and "true" are true, anything else is false.
func boolValue(field ConfigField, def bool) bool {
	value, ok := firstValue(field)
	if !ok {
		return def
	}
	return value == "1" || value == "true"
}

// intValue parses the field's first value, failing with
// ErrInvalidFieldValue on non-numeric input rather than silently
// defaulting.
func intValue(field ConfigField, def int) (int, error) {
	value, ok := firstValue(field)
	if !ok {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidFieldValue, field.Name, value)
	}
	return parsed, nil
}
