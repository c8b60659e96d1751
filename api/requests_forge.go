package api

import "encoding/json"

// ---------------------------------------------------------------------------
// Event push requests
// ---------------------------------------------------------------------------

// PushEventForgeRequest binds the path + body for POST /events/:binding.
type PushEventForgeRequest struct {
	Binding  string          `description:"Subscription binding name" path:"binding"`
	Envelope json.RawMessage `description:"Event envelope"            json:"envelope"`
}

// PushEventForgeResponse reports the dispatch outcome for a pushed event.
type PushEventForgeResponse struct {
	Outcome string `description:"processed, retry, or dropped" json:"outcome"`
}

// ---------------------------------------------------------------------------
// Internal job requests
// ---------------------------------------------------------------------------

// RunJobForgeRequest binds the path for POST /internal/jobs/:name.
type RunJobForgeRequest struct {
	Name string `description:"Job name" path:"name"`
}

// RunJobForgeResponse reports a job run's result.
type RunJobForgeResponse struct {
	Job      string `description:"Job name"                 json:"job"`
	Affected int    `description:"Items the job acted on"   json:"affected"`
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// SubscriptionsForgeRequest binds GET /subscriptions (no parameters).
type SubscriptionsForgeRequest struct{}

// SubscriptionForgeResponse is one topic binding.
type SubscriptionForgeResponse struct {
	Topic string `description:"Event topic"                json:"topic"`
	Route string `description:"Handler route for the topic" json:"route"`
}

// TopicsForgeRequest binds GET /topics (no parameters).
type TopicsForgeRequest struct{}

// TopicForgeResponse is one registered topic definition.
type TopicForgeResponse struct {
	Topic       string `description:"Topic name"            json:"topic"`
	Description string `description:"What the topic carries" json:"description,omitempty"`
	Version     string `description:"Schema version"        json:"version,omitempty"`
	Deprecated  bool   `description:"Publishing is refused" json:"deprecated"`
}

// HealthForgeRequest binds GET /healthz (no parameters).
type HealthForgeRequest struct{}

// HealthForgeResponse reports service health.
type HealthForgeResponse struct {
	Status string `description:"ok or degraded" json:"status"`
}
