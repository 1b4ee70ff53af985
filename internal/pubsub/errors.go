package pubsub

import "errors"

var (
	// ErrItemRequired is returned when a publish carries no item but the
	// node is configured to require one (persisting items or delivering
	// payloads).
	ErrItemRequired = errors.New("node requires an item to be included when publishing")

	// ErrPublishNotAuthorized is returned when the node's publisher model
	// rejects the publisher.
	ErrPublishNotAuthorized = errors.New("publisher is not allowed to publish to this node")

	// ErrInvalidFieldValue is returned when a recognized configuration
	// field carries a value that cannot be parsed.
	ErrInvalidFieldValue = errors.New("invalid configuration field value")

	// ErrSubscriptionsDisabled is returned when subscribing to a node
	// that has subscriptions disabled.
	ErrSubscriptionsDisabled = errors.New("node does not allow subscriptions")

	// ErrNodeIDEmpty is returned when creating a node with an empty identifier.
	ErrNodeIDEmpty = errors.New("node identifier cannot be empty")

	// ErrNodeExists is returned when creating a node whose identifier is taken.
	ErrNodeExists = errors.New("node already exists")

	// ErrNodeNotFound is returned when looking up an unknown node.
	ErrNodeNotFound = errors.New("node does not exist")

	// ErrServiceClosed is returned for operations on a closed service.
	ErrServiceClosed = errors.New("pubsub service is closed")
)
