package model

import "vaultflow/internal/sui"

// ObjectChangeType is the fullnode's classification of an object change.
type ObjectChangeType string

const (
	ChangeCreated     ObjectChangeType = "created"
	ChangeMutated     ObjectChangeType = "mutated"
	ChangeDeleted     ObjectChangeType = "deleted"
	ChangeWrapped     ObjectChangeType = "wrapped"
	ChangeTransferred ObjectChangeType = "transferred"
	ChangePublished   ObjectChangeType = "published"
)

// ObjectChange is one entity touched by a committed transaction.
type ObjectChange struct {
	Type       ObjectChangeType `json:"type"`
	ObjectID   sui.Address      `json:"object_id"`
	ObjectType string           `json:"object_type,omitempty"`
	Owner      sui.Owner        `json:"owner"`
	Version    uint64           `json:"version,omitempty"`
}
