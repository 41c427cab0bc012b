// Package readiness computes whether a shift is fit to run.
//
// A computation walks a fixed state machine: no site, unresolvable shift
// and failed policy binding are terminal. Otherwise an ordered chain of
// calculation strategies is tried until one produces a usable result. Every
// exit path normalizes its reason codes.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/solaius/shiftgate/pkg/policy"
	"github.com/solaius/shiftgate/pkg/reasoncode"
	"github.com/solaius/shiftgate/pkg/store"
)

const instrumentationName = "github.com/solaius/shiftgate/pkg/readiness"

// snapshotNamespace seeds the deterministic snapshot ids.
var snapshotNamespace = uuid.MustParse("0d6f3c1e-4b8a-5e2f-9c7d-3a1b2c4d5e6f")

// ShiftFinder resolves shift references.
type ShiftFinder interface {
	GetShift(ctx context.Context, orgID, shiftID string) (*store.ShiftRecord, error)
	FindShift(ctx context.Context, orgID, siteID, date, shiftCode string) (*store.ShiftRecord, error)
}

// Binder resolves the policies bound to a shift.
type Binder interface {
	Resolve(ctx context.Context, orgID, shiftID string) (policy.Result, error)
}

// SnapshotWriter persists policy snapshots.
type SnapshotWriter interface {
	Upsert(ctx context.Context, record *store.PolicySnapshotRecord) error
}

// Calculator computes readiness results.
type Calculator struct {
	shifts     ShiftFinder
	binder     Binder
	strategies []Strategy
	snapshots  SnapshotWriter
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	pending sync.WaitGroup
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Calculator) {
		if tp != nil {
			c.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithClock sets the time source for snapshot capture times.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCalculator creates a Calculator. snapshots may be nil to disable
// snapshot persistence.
func NewCalculator(shifts ShiftFinder, binder Binder, strategies []Strategy, snapshots SnapshotWriter, opts ...Option) *Calculator {
	c := &Calculator{
		shifts:     shifts,
		binder:     binder,
		strategies: strategies,
		snapshots:  snapshots,
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute returns the readiness of the shift ref addresses. Errors are
// returned only for store failures on the terminal steps; a shift that
// cannot be evaluated is a NO_GO result.
func (c *Calculator) Compute(ctx context.Context, orgID, siteID string, ref ShiftRef) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "readiness.Compute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("shiftgate.org_id", orgID),
			attribute.String("shiftgate.site_id", siteID),
			attribute.String("shiftgate.shift_ref", ref.String()),
		),
	)
	defer span.End()

	res, err := c.compute(ctx, orgID, siteID, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("shiftgate.status", string(res.Status)),
		attribute.String("shiftgate.legitimacy", string(res.LegitimacyStatus)),
		attribute.String("shiftgate.calculation", res.Calculation),
		attribute.StringSlice("shiftgate.reason_codes", res.ReasonCodes),
	)
	if unknown := res.diagnostics.UnknownReasonCodes; len(unknown) > 0 {
		c.logger.Warn("readiness produced unknown reason codes", "shiftId", res.ShiftID, "codes", unknown)
	}
	return res, nil
}

func (c *Calculator) compute(ctx context.Context, orgID, siteID string, ref ShiftRef) (Result, error) {
	if siteID == "" {
		return terminal("", LegitimacyOK, reasoncode.NoSite), nil
	}

	shift, err := c.resolveShift(ctx, orgID, siteID, ref)
	if err != nil {
		return Result{}, err
	}
	if shift == nil {
		return terminal("", LegitimacyOK, reasoncode.NoShift), nil
	}

	binding, err := c.binder.Resolve(ctx, orgID, shift.ID)
	if err != nil {
		return Result{}, err
	}
	if !binding.OK {
		return terminal(shift.ID, LegitimacyLegalStop, binding.ReasonCodes...), nil
	}
	refs := binding.Refs()

	var skipped []string
	for _, s := range c.strategies {
		raw, err := s.Compute(ctx, orgID, siteID, shift.ID)
		if err != nil {
			if !errors.Is(err, ErrUnavailable) {
				c.logger.Warn("readiness calculation failed, falling back",
					"calculation", s.Name(), "shiftId", shift.ID, "error", err)
			}
			skipped = append(skipped, s.Name())
			continue
		}

		res := finish(shift.ID, s.Name(), raw, refs)
		res.diagnostics.Skipped = skipped
		if raw.Compliance != nil {
			c.bindSnapshot(ctx, orgID, shift.ID, refs, &res)
		}
		return res, nil
	}

	res := terminal(shift.ID, LegitimacyOK, reasoncode.NoAssignments)
	res.Policy = refs
	res.diagnostics.Skipped = skipped
	return res, nil
}

func (c *Calculator) resolveShift(ctx context.Context, orgID, siteID string, ref ShiftRef) (*store.ShiftRecord, error) {
	switch {
	case ref.ShiftID != "":
		shift, err := c.shifts.GetShift(ctx, orgID, ref.ShiftID)
		if err != nil || shift == nil {
			return nil, err
		}
		if shift.SiteID != siteID {
			return nil, nil
		}
		return shift, nil
	case ref.Date != "" && ref.ShiftCode != "":
		return c.shifts.FindShift(ctx, orgID, siteID, ref.Date, ref.ShiftCode)
	}
	return nil, nil
}

// bindSnapshot stamps the result with the fingerprint and snapshot id of
// the policies used and persists the snapshot in the background.
func (c *Calculator) bindSnapshot(ctx context.Context, orgID, shiftID string, refs []policy.Ref, res *Result) {
	fp, err := policy.Fingerprint(refs)
	if err != nil {
		c.logger.Warn("policy fingerprint failed", "shiftId", shiftID, "error", err)
		return
	}
	if fp == "" {
		return
	}
	body, err := policy.CanonicalJSON(refs)
	if err != nil {
		c.logger.Warn("policy snapshot encoding failed", "shiftId", shiftID, "error", err)
		return
	}

	res.PolicyFingerprint = fp
	res.SnapshotID = SnapshotID(shiftID, fp)
	if c.snapshots == nil {
		return
	}

	record := &store.PolicySnapshotRecord{
		ID:          res.SnapshotID,
		OrgID:       orgID,
		ShiftID:     shiftID,
		Fingerprint: fp,
		Policy:      datatypes.JSON(body),
		CapturedAt:  c.now().UTC(),
	}
	c.pending.Add(1)
	go func(ctx context.Context) {
		defer c.pending.Done()
		if err := c.snapshots.Upsert(ctx, record); err != nil {
			c.logger.Warn("policy snapshot write failed", "shiftId", shiftID, "snapshotId", record.ID, "error", err)
		}
	}(context.WithoutCancel(ctx))
}

// Flush blocks until every background snapshot write has finished.
func (c *Calculator) Flush() {
	c.pending.Wait()
}

// SnapshotID is the deterministic id of the snapshot of fingerprint taken
// for shiftID.
func SnapshotID(shiftID, fingerprint string) string {
	return uuid.NewSHA1(snapshotNamespace, []byte(shiftID+"|"+fingerprint)).String()
}

func finish(shiftID, calculation string, raw *Raw, refs []policy.Ref) Result {
	normalized := reasoncode.Normalize(raw.ReasonCodes)
	res := Result{
		ShiftID:          shiftID,
		Score:            raw.Score,
		BlockingStations: dedup(raw.BlockingStations),
		ReasonCodes:      normalized.ReasonCodes,
		LegitimacyStatus: LegitimacyOK,
		Policy:           refs,
		PolicyCompliance: raw.Compliance,
		Calculation:      calculation,
	}
	res.diagnostics.UnknownReasonCodes = normalized.Unknown

	if raw.LegalStop {
		res.LegitimacyStatus = LegitimacyLegalStop
	}
	switch {
	case raw.LegalStop, len(res.BlockingStations) > 0, contains(res.ReasonCodes, reasoncode.NoAssignments):
		res.Status = StatusNoGo
	case raw.Warnings > 0:
		res.Status = StatusWarning
	default:
		res.Status = StatusGo
	}
	return res
}

func terminal(shiftID string, legitimacy Legitimacy, codes ...string) Result {
	normalized := reasoncode.Normalize(codes)
	res := Result{
		ShiftID:          shiftID,
		Score:            0,
		Status:           StatusNoGo,
		BlockingStations: []string{},
		ReasonCodes:      normalized.ReasonCodes,
		LegitimacyStatus: legitimacy,
		Policy:           []policy.Ref{},
	}
	res.diagnostics.UnknownReasonCodes = normalized.Unknown
	return res
}

func dedup(ids []string) []string {
	if len(ids) == 0 {
		return []string{}
	}
	set := mapset.NewThreadUnsafeSetWithSize[string](len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if set.Add(id) {
			out = append(out, id)
		}
	}
	return out
}

func contains(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// DescribeStatus renders a one-line summary, used by the CLI and logs.
func DescribeStatus(r Result) string {
	if len(r.ReasonCodes) == 0 {
		return fmt.Sprintf("%s (%.1f)", r.Status, r.Score)
	}
	return fmt.Sprintf("%s (%.1f) %s", r.Status, r.Score, strings.Join(r.ReasonCodes, ","))
}
