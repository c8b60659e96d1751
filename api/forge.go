package api

import (
	"net/http"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/dispatch"
	"github.com/xraph/cadence/signature"
)

// ForgeAPI wires the Cadence HTTP surface into a Forge router with OpenAPI
// metadata.
type ForgeAPI struct {
	cadence *cadence.Cadence
	secret  string
	log     forge.Logger
}

// NewForgeAPI creates a ForgeAPI over a Cadence instance. secret
// authenticates internal job routes; empty disables the check.
func NewForgeAPI(c *cadence.Cadence, secret string, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{
		cadence: c,
		secret:  secret,
		log:     log,
	}
}

// RegisterRoutes registers all Cadence routes into the given Forge router.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerEventRoutes(router)
	a.registerJobRoutes(router)
	a.registerIntrospectionRoutes(router)
}

// ---------------------------------------------------------------------------
// Event push routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEventRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("events"))

	if err := g.POST("/events/:binding", a.pushEvent,
		forge.WithSummary("Push event"),
		forge.WithDescription("Dispatches an envelope to the subscription bound at this route. 503 asks the pusher to redeliver."),
		forge.WithOperationID("pushEvent"),
		forge.WithRequestSchema(PushEventForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Dispatch outcome", PushEventForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		// Log the error and continue registering other routes instead of failing completely.
		// This ensures that if one route has an issue, the rest of the API remains available.
		// The error will be caught during testing or can be monitored via logs.
		a.log.Error("Failed to register pushEvent route", forge.Error(err))
	}
}

func (a *ForgeAPI) pushEvent(ctx forge.Context, req *PushEventForgeRequest) (*PushEventForgeResponse, error) {
	route := "/events/" + req.Binding

	outcome, ok := a.cadence.DispatchRoute(ctx.Context(), route, req.Envelope)
	if !ok {
		return nil, forge.NotFound("no subscription for route " + route)
	}
	if outcome == dispatch.Retry {
		return nil, forge.NewHTTPError(http.StatusServiceUnavailable, "retry")
	}

	return &PushEventForgeResponse{Outcome: outcome.String()}, nil
}

// ---------------------------------------------------------------------------
// Internal job routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerJobRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("jobs"))

	if err := g.POST("/internal/jobs/:name", a.runJob,
		forge.WithSummary("Run internal job"),
		forge.WithDescription("Executes a scheduler-triggered job. Requires a valid request signature."),
		forge.WithOperationID("runJob"),
		forge.WithRequestSchema(RunJobForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Job result", RunJobForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register runJob route", forge.Error(err))
	}
}

func (a *ForgeAPI) runJob(ctx forge.Context, req *RunJobForgeRequest) (*RunJobForgeResponse, error) {
	if !a.verifySignature(ctx.Request()) {
		return nil, forge.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	affected, err := a.cadence.RunJob(ctx.Context(), req.Name)
	if err != nil {
		return nil, mapForgeError(err)
	}

	return &RunJobForgeResponse{Job: req.Name, Affected: affected}, nil
}

func (a *ForgeAPI) verifySignature(r *http.Request) bool {
	if a.secret == "" {
		return true
	}
	return verifyRequestSignature(r, a.secret)
}

// ---------------------------------------------------------------------------
// Introspection routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerIntrospectionRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("introspection"))

	if err := g.GET("/subscriptions", a.listSubscriptions,
		forge.WithSummary("List subscriptions"),
		forge.WithDescription("Returns this service's topic bindings."),
		forge.WithOperationID("listSubscriptions"),
		forge.WithResponseSchema(http.StatusOK, "Topic bindings", []SubscriptionForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listSubscriptions route", forge.Error(err))
	}

	if err := g.GET("/topics", a.listTopics,
		forge.WithSummary("List topics"),
		forge.WithDescription("Returns every registered topic definition."),
		forge.WithOperationID("listTopics"),
		forge.WithResponseSchema(http.StatusOK, "Topic definitions", []TopicForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listTopics route", forge.Error(err))
	}

	if err := g.GET("/healthz", a.health,
		forge.WithSummary("Health check"),
		forge.WithDescription("Checks state store connectivity."),
		forge.WithOperationID("health"),
		forge.WithResponseSchema(http.StatusOK, "Service health", HealthForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register health route", forge.Error(err))
	}
}

func (a *ForgeAPI) listSubscriptions(ctx forge.Context, _ *SubscriptionsForgeRequest) ([]SubscriptionForgeResponse, error) {
	bindings := a.cadence.Bindings()
	out := make([]SubscriptionForgeResponse, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, SubscriptionForgeResponse{Topic: b.Topic, Route: b.Route})
	}
	return out, nil
}

func (a *ForgeAPI) listTopics(ctx forge.Context, _ *TopicsForgeRequest) ([]TopicForgeResponse, error) {
	registry := a.cadence.Registry()
	topics := registry.Topics()
	out := make([]TopicForgeResponse, 0, len(topics))
	for _, name := range topics {
		def, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, TopicForgeResponse{
			Topic:       def.Topic,
			Description: def.Description,
			Version:     def.Version,
			Deprecated:  registry.IsDeprecated(def.Topic),
		})
	}
	return out, nil
}

func (a *ForgeAPI) health(ctx forge.Context, _ *HealthForgeRequest) (*HealthForgeResponse, error) {
	if err := a.cadence.Ping(ctx.Context()); err != nil {
		return nil, forge.NewHTTPError(http.StatusServiceUnavailable, "degraded: "+err.Error())
	}
	return &HealthForgeResponse{Status: "ok"}, nil
}

// verifyRequestSignature checks the HMAC headers on a signed request. The
// body is not re-read here; internal job requests carry empty bodies and the
// signature covers the timestamp alone in that case.
func verifyRequestSignature(r *http.Request, secret string) bool {
	ts, err := strconv.ParseInt(r.Header.Get(signature.HeaderTimestamp), 10, 64)
	if err != nil {
		return false
	}
	sig := r.Header.Get(signature.HeaderSignature)
	return signature.VerifyWithTolerance(nil, secret, ts, sig, signature.DefaultTolerance)
}
