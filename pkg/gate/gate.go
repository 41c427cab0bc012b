// Package gate is the firewall every governed mutation passes through.
//
// Guard checks that the action is declared, validates the shift context,
// verifies the execution token when the action needs one, optionally
// computes readiness, runs the caller's mutation and appends exactly one
// governance event when the mutation succeeds.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solaius/shiftgate/pkg/audit"
	"github.com/solaius/shiftgate/pkg/readiness"
	"github.com/solaius/shiftgate/pkg/store"
	"github.com/solaius/shiftgate/pkg/token"
)

const instrumentationName = "github.com/solaius/shiftgate/pkg/gate"

var shiftCodeRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,31}$`)

// Readiness computes shift readiness.
type Readiness interface {
	Compute(ctx context.Context, orgID, siteID string, ref readiness.ShiftRef) (readiness.Result, error)
}

// TokenVerifier verifies execution tokens.
type TokenVerifier interface {
	Verify(tokenString string) token.Verification
}

// AuditSink appends governance events.
type AuditSink interface {
	Append(ctx context.Context, event *audit.EventRecord) (string, error)
}

// Context describes one governed mutation.
type Context struct {
	OrgID      string
	SiteID     string
	Actor      string
	Action     string
	TargetType string
	TargetID   string
	Meta       map[string]any
	// Date and ShiftCode are both set or both empty.
	Date      string
	ShiftCode string
	Token     string
	RequestID string
}

// HasShift reports whether any shift context was supplied.
func (c Context) HasShift() bool { return c.Date != "" || c.ShiftCode != "" }

// Flow is what the mutation sees of the governed flow.
type Flow struct {
	Context
	Policy ActionPolicy
	// Claims of the verified token, nil when the action needs none.
	Claims *token.Claims
	// Readiness is set when the action requires policy and a shift
	// context was given.
	Readiness *readiness.Result
}

// Delegate is the caller's mutation.
type Delegate func(ctx context.Context, flow Flow) (any, error)

// Outcome is a successful governed mutation.
type Outcome struct {
	Value             any
	Governed          bool
	PolicyFingerprint string
	SnapshotID        string
	EventID           string
}

// Gate runs governed mutations.
type Gate struct {
	registry  *Registry
	readiness Readiness
	verifier  TokenVerifier
	sink      AuditSink
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gate) {
		if tp != nil {
			g.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// New creates a Gate. readiness and verifier may be nil when no registered
// action needs them.
func New(registry *Registry, rd Readiness, verifier TokenVerifier, sink AuditSink, opts ...Option) *Gate {
	if registry == nil {
		registry = DefaultRegistry()
	}
	g := &Gate{
		registry:  registry,
		readiness: rd,
		verifier:  verifier,
		sink:      sink,
		logger:    slog.Default(),
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the gate's action registry.
func (g *Gate) Registry() *Registry { return g.registry }

// Guard runs fn as the governed action described by c. Errors from fn are
// returned unchanged and leave no audit trail. Every other failure is an
// *Error.
func (g *Gate) Guard(ctx context.Context, c Context, fn Delegate) (Outcome, error) {
	ctx, span := g.tracer.Start(ctx, "gate.Guard",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("shiftgate.org_id", c.OrgID),
			attribute.String("shiftgate.action", c.Action),
			attribute.String("shiftgate.target_type", c.TargetType),
			attribute.String("shiftgate.target_id", c.TargetID),
		),
	)
	defer span.End()

	out, err := g.guard(ctx, c, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ge, ok := AsError(err); ok {
			span.SetAttributes(attribute.String("shiftgate.error_code", ge.Code))
		}
		return Outcome{}, err
	}
	span.SetAttributes(attribute.String("shiftgate.event_id", out.EventID))
	if out.PolicyFingerprint != "" {
		span.SetAttributes(attribute.String("shiftgate.policy_fingerprint", out.PolicyFingerprint))
	}
	return out, nil
}

func (g *Gate) guard(ctx context.Context, c Context, fn Delegate) (Outcome, error) {
	pol, ok := g.registry.Lookup(c.Action)
	if !ok || !pol.Governed {
		return Outcome{}, newError(KindConfiguration, CodeActionNotDeclared,
			fmt.Sprintf("action %q is not declared as governed", c.Action))
	}
	if fn == nil {
		return Outcome{}, newError(KindConfiguration, CodeGateMisconfigured, "no mutation given")
	}
	if g.sink == nil {
		return Outcome{}, newError(KindConfiguration, CodeGateMisconfigured, "no audit sink configured")
	}

	c.Date = strings.TrimSpace(c.Date)
	c.ShiftCode = strings.TrimSpace(c.ShiftCode)
	if err := validateShiftContext(c, pol); err != nil {
		return Outcome{}, err
	}

	flow := Flow{Context: c, Policy: pol}

	if pol.RequiresToken {
		claims, err := g.checkToken(c)
		if err != nil {
			return Outcome{}, err
		}
		flow.Claims = claims
	}

	if pol.RequiresPolicy && c.HasShift() {
		res, err := g.computeReadiness(ctx, c, pol)
		if err != nil {
			return Outcome{}, err
		}
		flow.Readiness = res
	}

	value, err := fn(ctx, flow)
	if err != nil {
		g.logger.Debug("governed action failed", "action", c.Action, "targetType", c.TargetType, "targetId", c.TargetID, "error", err)
		return Outcome{}, err
	}

	out := Outcome{Value: value, Governed: true}
	if flow.Readiness != nil {
		out.PolicyFingerprint = flow.Readiness.PolicyFingerprint
		out.SnapshotID = flow.Readiness.SnapshotID
	}

	event := &audit.EventRecord{
		OrgID:             c.OrgID,
		SiteID:            c.SiteID,
		Action:            c.Action,
		TargetType:        c.TargetType,
		TargetID:          c.TargetID,
		Meta:              eventMeta(c),
		PolicyFingerprint: out.PolicyFingerprint,
		SnapshotID:        out.SnapshotID,
		RequestID:         c.RequestID,
		CreatedBy:         c.Actor,
	}
	eventID, err := g.sink.Append(ctx, event)
	if err != nil {
		g.logger.Error("governance event write failed after mutation", "action", c.Action, "targetId", c.TargetID, "error", err)
		return Outcome{}, &Error{
			Kind:    KindInternal,
			Code:    CodeAuditWriteFailed,
			Message: "governance event could not be recorded",
			Err:     err,
		}
	}
	out.EventID = eventID
	return out, nil
}

// validateShiftContext requires both date and shift code unless the action
// is exempt. A partial context is rejected even for exempt actions.
func validateShiftContext(c Context, pol ActionPolicy) error {
	hasDate, hasCode := c.Date != "", c.ShiftCode != ""
	switch {
	case hasDate != hasCode:
		missing := "shift_code"
		if !hasDate {
			missing = "date"
		}
		return newError(KindValidation, CodeShiftContextPartial,
			fmt.Sprintf("shift context is partial: %s is missing", missing))
	case !hasDate:
		if pol.ShiftContextExempt {
			return nil
		}
		return newError(KindValidation, CodeShiftContextRequired,
			fmt.Sprintf("action %q requires a date and shift code", c.Action))
	}
	if _, err := time.Parse(time.DateOnly, c.Date); err != nil {
		return newError(KindValidation, CodeShiftDateInvalid,
			fmt.Sprintf("date %q is not a calendar date (YYYY-MM-DD)", c.Date))
	}
	if !shiftCodeRe.MatchString(c.ShiftCode) {
		return newError(KindValidation, CodeShiftCodeInvalid,
			fmt.Sprintf("shift code %q is invalid", c.ShiftCode))
	}
	return nil
}

func (g *Gate) checkToken(c Context) (*token.Claims, error) {
	if g.verifier == nil {
		return nil, newError(KindConfiguration, CodeGateMisconfigured,
			fmt.Sprintf("action %q requires an execution token but no verifier is configured", c.Action))
	}
	if strings.TrimSpace(c.Token) == "" {
		return nil, newError(KindUnauthorized, CodeTokenRequired,
			fmt.Sprintf("action %q requires an execution token", c.Action))
	}
	v := g.verifier.Verify(c.Token)
	if !v.Valid {
		code, msg := CodeTokenInvalid, "execution token is invalid"
		if v.Error != nil {
			msg = v.Error.Message
			if v.Error.Code == token.CodeExpired {
				code = CodeTokenExpired
			}
		}
		return nil, newError(KindUnauthorized, code, msg)
	}
	if !v.Payload.Allows(c.Action) {
		return nil, newError(KindConflict, CodeTokenScopeMismatch,
			fmt.Sprintf("execution token does not allow %q", c.Action))
	}
	if v.Payload.OrgID != "" && v.Payload.OrgID != c.OrgID {
		return nil, newError(KindConflict, CodeTokenScopeMismatch,
			"execution token was issued for another organization")
	}
	return v.Payload, nil
}

func (g *Gate) computeReadiness(ctx context.Context, c Context, pol ActionPolicy) (*readiness.Result, error) {
	if g.readiness == nil {
		return nil, newError(KindConfiguration, CodeGateMisconfigured,
			fmt.Sprintf("action %q requires policy but no readiness calculator is configured", c.Action))
	}
	res, err := g.readiness.Compute(ctx, c.OrgID, c.SiteID, readiness.ByDate(c.Date, c.ShiftCode))
	if err != nil {
		return nil, &Error{
			Kind:    KindInternal,
			Code:    CodeReadinessUnavailable,
			Message: "readiness could not be computed",
			Err:     err,
		}
	}
	if pol.BlockOnLegalStop && res.LegitimacyStatus == readiness.LegitimacyLegalStop {
		return nil, &Error{
			Kind:    KindPrecondition,
			Code:    CodeShiftLegalStop,
			Message: fmt.Sprintf("shift %s@%s is under legal stop", c.Date, c.ShiftCode),
			Reasons: res.ReasonCodes,
		}
	}
	return &res, nil
}

func eventMeta(c Context) store.JSONAny {
	meta := make(store.JSONAny, len(c.Meta)+2)
	for k, v := range c.Meta {
		meta[k] = v
	}
	if c.Date != "" {
		meta["shift_date"] = c.Date
		meta["shift_code"] = c.ShiftCode
	}
	return meta
}
