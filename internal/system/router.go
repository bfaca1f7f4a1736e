// Package system implements the control-plane router: route matching, the lifecycle and
// authorization gates, and the handlers of the system backend.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	apperrors "github.com/allisson/covert/internal/errors"
	identityDomain "github.com/allisson/covert/internal/identity/domain"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	"github.com/allisson/covert/internal/metrics"
	policyDomain "github.com/allisson/covert/internal/policy/domain"
)

// Operation is the verb of a request.
type Operation string

const (
	CreateOperation Operation = "create"
	ReadOperation   Operation = "read"
	UpdateOperation Operation = "update"
	DeleteOperation Operation = "delete"
	RevokeOperation Operation = "revoke"
)

// Capability returns the policy capability an operation requires. Revoke is update-like.
func (o Operation) Capability() policyDomain.Capability {
	switch o {
	case CreateOperation:
		return policyDomain.CreateCapability
	case ReadOperation:
		return policyDomain.ReadCapability
	case DeleteOperation:
		return policyDomain.DeleteCapability
	default:
		return policyDomain.UpdateCapability
	}
}

// AuthPolicy is the authorization requirement of a route.
type AuthPolicy uint8

const (
	// Authenticated requires a token whose policies grant the operation's capability.
	Authenticated AuthPolicy = iota
	// Unauthenticated skips the authorization gate.
	Unauthenticated
)

// PolicyPathPrefix is prepended to route paths for policy evaluation.
const PolicyPathPrefix = "sys/"

// Request is one call into the system backend.
type Request struct {
	Operation Operation
	// Path is relative to the system backend, for example "mounts/kv/".
	Path      string
	Token     string
	Body      []byte
	Query     url.Values
	RequestID string
}

// Response is the typed result of a handler.
type Response struct {
	Data any
}

// Caller is the authenticated principal. It is nil on unauthenticated routes.
type Caller struct {
	Token    *authDomain.Token
	Entity   *identityDomain.Entity
	Policies []string
}

// HandlerRequest is what a handler receives: the bound path parameters, the raw body and
// the caller.
type HandlerRequest struct {
	Params map[string]string
	Body   []byte
	Query  url.Values
	Caller *Caller
}

// Param returns the named path parameter.
func (r *HandlerRequest) Param(name string) string {
	return r.Params[name]
}

// HandlerFunc handles a routed request.
type HandlerFunc func(ctx context.Context, req *HandlerRequest) (any, error)

// Route binds a path pattern and an operation to a handler. A pattern may end with a
// wildcard segment "*name" capturing the non-empty remainder of the path.
type Route struct {
	Path      string
	Operation Operation
	// States lists the lifecycle states the route is reachable in. Empty means unsealed only.
	States  []lifecycleDomain.State
	Policy  AuthPolicy
	Handler HandlerFunc
}

// StateReader exposes the current lifecycle state.
type StateReader interface {
	State() lifecycleDomain.State
}

// TokenAuthenticator resolves a plain token.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, plainToken string) (*authDomain.Token, error)
}

// EntityResolver resolves the entity a token is bound to.
type EntityResolver interface {
	Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error)
}

// PolicyChecker evaluates policies by name.
type PolicyChecker interface {
	IsAllowed(ctx context.Context, names []string, path string, capability policyDomain.Capability) (bool, error)
}

// AuditRecorder stores audit logs.
type AuditRecorder interface {
	Create(ctx context.Context, auditLog *authDomain.AuditLog) error
}

// RouterConfig holds the collaborators of the gates.
type RouterConfig struct {
	State    StateReader
	Tokens   TokenAuthenticator
	Entities EntityResolver
	Policies PolicyChecker
	Audit    AuditRecorder
	Metrics  metrics.BusinessMetrics
	Logger   *slog.Logger
}

type compiledRoute struct {
	Route
	prefix   string
	segments []string
	wildcard string
}

// Router dispatches requests to the route table. The table is fixed at construction.
type Router struct {
	config RouterConfig
	exact  map[string][]*compiledRoute
	prefix []*compiledRoute
}

// NewRouter compiles routes. Duplicate (pattern, operation) pairs and malformed patterns are
// rejected.
func NewRouter(config RouterConfig, routes ...Route) (*Router, error) {
	if config.Metrics == nil {
		config.Metrics = metrics.NewNoOpBusinessMetrics()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	r := &Router{
		config: config,
		exact:  make(map[string][]*compiledRoute),
	}

	seen := make(map[string]bool, len(routes))
	for _, route := range routes {
		compiled, err := compileRoute(route)
		if err != nil {
			return nil, err
		}

		key := string(route.Operation) + " " + compiled.prefix
		if compiled.wildcard != "" {
			key += "*"
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate route %s %s", route.Operation, route.Path)
		}
		seen[key] = true

		if compiled.wildcard == "" {
			r.exact[compiled.prefix] = append(r.exact[compiled.prefix], compiled)
		} else {
			r.prefix = append(r.prefix, compiled)
		}
	}

	// Longer literal prefixes are tried first.
	slices.SortStableFunc(r.prefix, func(a, b *compiledRoute) int {
		return len(b.prefix) - len(a.prefix)
	})

	return r, nil
}

func compileRoute(route Route) (*compiledRoute, error) {
	if route.Handler == nil {
		return nil, fmt.Errorf("route %s %s has no handler", route.Operation, route.Path)
	}
	if route.Operation == "" {
		return nil, fmt.Errorf("route %s has no operation", route.Path)
	}

	path := strings.Trim(route.Path, "/")
	segments := strings.Split(path, "/")
	compiled := &compiledRoute{Route: route, segments: segments}

	for i, segment := range segments {
		if segment == "" && path != "" {
			return nil, fmt.Errorf("route %s has an empty segment", route.Path)
		}
		if !strings.HasPrefix(segment, "*") {
			continue
		}
		if i != len(segments)-1 {
			return nil, fmt.Errorf("route %s has a wildcard before the last segment", route.Path)
		}
		if len(segment) == 1 {
			return nil, fmt.Errorf("route %s has an unnamed wildcard", route.Path)
		}
		compiled.wildcard = segment[1:]
		compiled.prefix = strings.Join(segments[:i], "/") + "/"
		return compiled, nil
	}

	compiled.prefix = path
	return compiled, nil
}

// match returns the route for path and operation with its bound parameters. Exact patterns
// are preferred over wildcards, and longer wildcard prefixes over shorter ones.
func (r *Router) match(path string, operation Operation) (*compiledRoute, map[string]string, error) {
	path = strings.TrimPrefix(path, "/")
	matched := false

	for _, route := range r.exact[strings.TrimSuffix(path, "/")] {
		matched = true
		if route.Operation == operation {
			return route, map[string]string{}, nil
		}
	}

	for _, route := range r.prefix {
		rest, ok := strings.CutPrefix(path, route.prefix)
		if !ok || rest == "" {
			continue
		}
		matched = true
		if route.Operation == operation {
			return route, map[string]string{route.wildcard: rest}, nil
		}
	}

	if matched {
		return nil, nil, ErrUnsupportedOperation
	}
	return nil, nil, ErrRouteNotFound
}

// Operations lists the operations offered at path, exact routes first.
func (r *Router) Operations(path string) []Operation {
	path = strings.TrimPrefix(path, "/")

	var operations []Operation
	for _, route := range r.exact[strings.TrimSuffix(path, "/")] {
		operations = append(operations, route.Operation)
	}
	for _, route := range r.prefix {
		if rest, ok := strings.CutPrefix(path, route.prefix); ok && rest != "" {
			operations = append(operations, route.Operation)
		}
	}
	return operations
}

// Dispatch matches the request, runs the lifecycle and authorization gates and invokes the
// handler. Gate failures happen before any handler side effect.
func (r *Router) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	route, params, err := r.match(req.Path, req.Operation)
	if err != nil {
		r.record(ctx, "unmatched", start, err)
		return nil, err
	}

	if err := r.checkState(route); err != nil {
		r.record(ctx, route.Path, start, err)
		return nil, err
	}

	var caller *Caller
	if route.Policy != Unauthenticated {
		caller, err = r.authorize(ctx, route, req)
		if err != nil {
			r.record(ctx, route.Path, start, err)
			return nil, err
		}
	}

	data, err := route.Handler(ctx, &HandlerRequest{
		Params: params,
		Body:   req.Body,
		Query:  req.Query,
		Caller: caller,
	})
	r.record(ctx, route.Path, start, err)
	if err != nil {
		return nil, err
	}

	return &Response{Data: data}, nil
}

func (r *Router) checkState(route *compiledRoute) error {
	states := route.States
	if len(states) == 0 {
		states = []lifecycleDomain.State{lifecycleDomain.StateUnsealed}
	}

	current := r.config.State.State()
	if !slices.Contains(states, current) {
		return apperrors.Wrapf(apperrors.ErrInvalidState, "operation not allowed while %s", current)
	}
	return nil
}

// authorize resolves the caller and checks the route's capability on sys/<path>. Every
// decision taken for a resolved token is written to the audit log.
func (r *Router) authorize(ctx context.Context, route *compiledRoute, req *Request) (*Caller, error) {
	token, err := r.config.Tokens.Authenticate(ctx, req.Token)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrForbidden) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}

	caller := &Caller{Token: token, Policies: slices.Clone(token.Policies)}
	if token.EntityID != nil {
		entity, err := r.config.Entities.Get(ctx, *token.EntityID)
		switch {
		case err == nil:
			caller.Entity = entity
			caller.Policies = append(caller.Policies, entity.Policies...)
		case apperrors.Is(err, identityDomain.ErrEntityNotFound):
			// A deleted entity contributes no policies.
		default:
			return nil, err
		}
	}

	path := policyPath(route, req.Path)
	capability := req.Operation.Capability()

	allowed, err := r.config.Policies.IsAllowed(ctx, caller.Policies, path, capability)
	if err != nil {
		return nil, err
	}

	r.audit(ctx, req, caller, path, capability, allowed)

	if !allowed {
		r.config.Logger.DebugContext(ctx, "authorization failed: insufficient permissions",
			slog.String("token_id", token.ID.String()),
			slog.String("path", path),
			slog.String("capability", string(capability)),
		)
		return nil, ErrPermissionDenied
	}

	return caller, nil
}

// policyPath is the path policies are evaluated against. Exact routes match with or without
// a trailing slash, so it is dropped to keep "entity/" from being checked as a sub-path.
func policyPath(route *compiledRoute, requestPath string) string {
	path := strings.TrimPrefix(requestPath, "/")
	if route.wildcard == "" {
		path = strings.TrimSuffix(path, "/")
	}
	return PolicyPathPrefix + path
}

func (r *Router) audit(
	ctx context.Context,
	req *Request,
	caller *Caller,
	path string,
	capability policyDomain.Capability,
	allowed bool,
) {
	if r.config.Audit == nil {
		return
	}

	auditLog := &authDomain.AuditLog{
		RequestID:  req.RequestID,
		TokenID:    caller.Token.ID,
		EntityID:   caller.Token.EntityID,
		Operation:  string(req.Operation),
		Capability: string(capability),
		Path:       path,
		Allowed:    allowed,
	}
	if caller.Entity != nil {
		auditLog.Metadata = map[string]any{"entity_name": caller.Entity.Name}
	}

	if err := r.config.Audit.Create(ctx, auditLog); err != nil {
		r.config.Logger.ErrorContext(ctx, "failed to create audit log",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
}

func (r *Router) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = apperrors.KindOf(err)
	}

	r.config.Metrics.RecordOperation(ctx, "system", operation, status)
	r.config.Metrics.RecordDuration(ctx, "system", operation, time.Since(start), status)
}
