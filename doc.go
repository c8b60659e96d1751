// Package cadence provides an event-driven task-lifecycle engine for Go.
//
// Cadence is a library, not a service. Import it into your application to
// get validated event publishing for task lifecycle topics, idempotent
// subscriptions over an at-least-once broker, due-reminder firing, and
// anchored recurring-task materialization, with a circuit-broken resilient
// client for the task API it collaborates with.
//
// Key pieces:
//   - Versioned event envelopes with JSON Schema payload validation
//   - Pluggable pub/sub transport (Redis, Google Pub/Sub, in-process)
//   - Shared state store with TTL and etag compare-and-swap (Redis, Memory)
//   - Consumer-side dedup markers for exactly-once side effects
//   - Fixed-window rate limiting that holds across instances
//   - Cron triggers for reminder checks, recurring sweeps, and cleanup
//
// Quick start:
//
//	c, err := cadence.New(
//	    cadence.WithStateStore(store),
//	    cadence.WithTransport(transport),
//	    cadence.WithTaskAPI("http://task-api:8080"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	env, _ := event.NewEnvelope(event.TopicTaskCompleted, taskID, "usr_123", payload)
//	c.PublishLogged(ctx, event.TopicTaskCompleted, env)
package cadence
