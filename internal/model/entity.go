package model

import "fmt"

// EntityRef identifies a domain entity touched during a call.
type EntityRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// NewEntityRef string-casts the id so int and uuid keys compare alike.
func NewEntityRef(entityType string, id any) EntityRef {
	return EntityRef{EntityType: entityType, EntityID: fmt.Sprint(id)}
}

func (e EntityRef) Key() string {
	return e.EntityType + ":" + e.EntityID
}

func (e EntityRef) String() string {
	return e.Key()
}
