package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Definition describes a registered topic.
type Definition struct {
	// Topic is the dot-separated topic name. Convention: "<resource>.<action>".
	Topic string `json:"topic"`

	// Description is a human-readable explanation of when this event fires.
	Description string `json:"description,omitempty"`

	// Schema is an optional JSON Schema describing the payload shape.
	// When set, the publisher validates every payload against it.
	Schema json.RawMessage `json:"schema,omitempty"`

	// Version is the API version of this topic. Convention: date-based.
	Version string `json:"version,omitempty"`
}

// Registry holds the set of topics a service may publish or subscribe to.
// Topics are registered at startup; lookups are read-mostly.
type Registry struct {
	mu         sync.RWMutex
	topics     map[string]*Definition
	deprecated map[string]bool
	schemas    map[string]*jsonschema.Schema // keyed by topic
}

// NewRegistry creates an empty topic registry.
func NewRegistry() *Registry {
	return &Registry{
		topics:     make(map[string]*Definition),
		deprecated: make(map[string]bool),
		schemas:    make(map[string]*jsonschema.Schema),
	}
}

// NewStandardRegistry returns a registry preloaded with the task lifecycle
// and reminder topics, without payload schemas.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	for _, topic := range []string{
		TopicTaskCreated,
		TopicTaskUpdated,
		TopicTaskCompleted,
		TopicTaskDeleted,
		TopicReminderDue,
	} {
		// Registration of literal topic names cannot fail.
		_ = r.Register(Definition{Topic: topic})
	}
	return r
}

// Register adds a topic definition, compiling its schema if present.
// Re-registering an existing topic replaces its definition.
func (r *Registry) Register(def Definition) error {
	if def.Topic == "" {
		return fmt.Errorf("event: register: topic name is required")
	}

	var compiled *jsonschema.Schema
	if len(def.Schema) > 0 {
		var err error
		compiled, err = compileSchema(def.Topic, def.Schema)
		if err != nil {
			return fmt.Errorf("event: register %s: %w", def.Topic, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	d := def
	r.topics[def.Topic] = &d
	delete(r.deprecated, def.Topic)
	if compiled != nil {
		r.schemas[def.Topic] = compiled
	} else {
		delete(r.schemas, def.Topic)
	}
	return nil
}

// Deprecate soft-deletes a topic. Publishing to it fails; the definition
// remains visible for documentation.
func (r *Registry) Deprecate(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[topic]; ok {
		r.deprecated[topic] = true
	}
}

// Lookup returns the definition for a topic, or ok=false if unregistered.
func (r *Registry) Lookup(topic string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.topics[topic]
	return d, ok
}

// IsDeprecated reports whether a topic has been deprecated.
func (r *Registry) IsDeprecated(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deprecated[topic]
}

// Topics returns all registered topic names in unspecified order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	return names
}

// ValidatePayload checks raw payload data against the topic's schema, if one
// was registered. Topics without a schema accept any payload.
func (r *Registry) ValidatePayload(topic string, payload json.RawMessage) error {
	r.mu.RLock()
	compiled, ok := r.schemas[topic]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("event: payload is not valid JSON: %w", err)
	}
	return compiled.Validate(doc)
}

// compileSchema compiles a JSON Schema under a topic-derived resource URL.
func compileSchema(topic string, schema json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := "cadence://schema/" + strings.ReplaceAll(topic, ".", "/")

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
