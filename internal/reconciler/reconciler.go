// Package reconciler compares the declared DNS state with the records the
// provider holds and applies the removals and additions needed to converge.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"gitlab.bluewillows.net/root/dhdnssync/internal/metrics"
	"gitlab.bluewillows.net/root/dhdnssync/pkg/zone"
	"gitlab.bluewillows.net/root/dhdnssync/providers/dreamhost"
)

// ErrAborted marks a cycle that stopped before touching any record.
var ErrAborted = errors.New("reconciliation aborted")

// RecordStore is the provider surface the reconciler needs.
// *dreamhost.Client satisfies it.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]dreamhost.Record, error)
	AddRecord(ctx context.Context, name, recordType, value string) error
	RemoveRecord(ctx context.Context, name, recordType, value string) error
}

// AddressResolver returns the host's current public address.
// *resolver.Resolver satisfies it.
type AddressResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Recorder persists the outcome of a completed cycle.
type Recorder interface {
	Save(ctx context.Context, result *Result) error
}

// Config holds reconciler configuration options.
type Config struct {
	// DryRun if true, logs changes without applying them.
	DryRun bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{DryRun: false}
}

// Reconciler converges provider records towards the declared zones.
//
// Each cycle:
//  1. Resolves the public address once, if any record uses PublicIp
//  2. Lists the provider's records once
//  3. Walks zones and records in declaration order, running the removal
//     phase and then the add phase for each record
//
// Nothing is touched when step 1 or 2 fails.
type Reconciler struct {
	store    RecordStore
	resolver AddressResolver
	zones    []zone.Zone
	recorder Recorder
	config   Config
	logger   *slog.Logger
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// WithRecorder sets where completed cycles are persisted.
func WithRecorder(recorder Recorder) Option {
	return func(r *Reconciler) {
		r.recorder = recorder
	}
}

// New creates a Reconciler. addr may be nil when no zone declares a
// PublicIp record.
func New(store RecordStore, addr AddressResolver, zones []zone.Zone, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		resolver: addr,
		zones:    zones,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Zones returns the declared zones.
func (r *Reconciler) Zones() []zone.Zone {
	return r.zones
}

// Reconcile runs one cycle.
//
// A non-nil error wrapping ErrAborted means the cycle stopped before any
// record was evaluated, either because the public address was required but
// could not be resolved or because the provider's records could not be
// listed. Per-record failures do not produce an error; they are reported
// as failed actions in the Result.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	result := NewResult(r.config.DryRun)
	result.RecordsDeclared = zone.CountRecords(r.zones)
	metrics.RecordsDeclared.Set(float64(result.RecordsDeclared))

	r.logger.Info("starting reconciliation",
		slog.Int("zones", len(r.zones)),
		slog.Int("records", result.RecordsDeclared),
		slog.Bool("dry_run", r.config.DryRun),
	)

	if zone.NeedsPublicAddress(r.zones) {
		addr, err := r.resolveAddress(ctx)
		if err != nil {
			r.logger.Error("unable to determine public address, skipping cycle",
				slog.String("error", err.Error()),
			)
			return nil, r.abort(result, fmt.Errorf("resolving public address: %w", err))
		}
		result.Address = addr
		r.logger.Info("resolved public address", slog.String("address", addr))
	}

	live, err := r.store.ListRecords(ctx)
	if err != nil {
		if dreamhost.IsEnvelopeFailure(err) {
			r.logger.Error("failed to retrieve dns listing, is the API key valid?",
				slog.String("error", err.Error()),
			)
		} else {
			r.logger.Error("failed to retrieve dns listing",
				slog.String("error", err.Error()),
			)
		}
		return nil, r.abort(result, fmt.Errorf("listing records: %w", err))
	}
	result.RecordsLive = len(live)
	metrics.RecordsLive.Set(float64(len(live)))

	ws := newWorkingSet(live)

	var interrupted error
zones:
	for _, z := range r.zones {
		for _, rec := range z.Records {
			if err := ctx.Err(); err != nil {
				interrupted = err
				break zones
			}
			r.reconcileRecord(ctx, z, rec, result.Address, ws, result)
		}
	}

	result.Complete()
	r.recordMetrics(result)
	r.save(ctx, result)

	if interrupted != nil {
		r.logger.Warn("reconciliation interrupted",
			slog.String("error", interrupted.Error()),
		)
		return result, fmt.Errorf("reconciliation interrupted: %w", interrupted)
	}

	r.logger.Info("reconciliation complete",
		slog.Duration("duration", result.Duration()),
		slog.Int("removed", result.RemovedCount()),
		slog.Int("added", result.AddedCount()),
		slog.Int("skipped", len(result.Skipped())),
		slog.Int("failed", result.FailedCount()),
	)

	return result, nil
}

func (r *Reconciler) resolveAddress(ctx context.Context) (string, error) {
	if r.resolver == nil {
		return "", errors.New("no address resolver configured")
	}
	return r.resolver.Resolve(ctx)
}

func (r *Reconciler) abort(result *Result, err error) error {
	result.Complete()
	metrics.ReconciliationsTotal.WithLabelValues("aborted").Inc()
	metrics.ReconciliationDuration.Observe(result.Duration().Seconds())
	return fmt.Errorf("%w: %w", ErrAborted, err)
}

// reconcileRecord runs the removal phase and, unless it failed, the add
// phase for one declared record.
func (r *Reconciler) reconcileRecord(ctx context.Context, z zone.Zone, rec zone.Record, address string, ws *workingSet, result *Result) {
	removal := r.removalPhase(ctx, z, rec, address, ws)
	result.AddAction(removal)
	if removal.Status == StatusFailed {
		return
	}

	result.AddAction(r.addPhase(ctx, z, rec, address, ws))
}

func (r *Reconciler) removalPhase(ctx context.Context, z zone.Zone, rec zone.Record, address string, ws *workingSet) Action {
	name := z.Qualify(rec.Name)
	recordType := rec.Type.String()

	action := Action{
		Phase: PhaseRemove,
		Zone:  z.Name,
		Name:  name,
		Type:  recordType,
	}

	idx := ws.match(name, recordType)
	if idx < 0 {
		action.Status = StatusSkipped
		action.Reason = "no live record"
		return action
	}

	liveValue := ws.records[idx].Value

	switch rec.UpdateMode {
	case zone.EnsureExists:
		action.Value = rec.Value
		action.Status = StatusSkipped
		action.Reason = "present"
		return action

	case zone.PublicIp:
		action.Value = liveValue
		if liveValue == address {
			action.Status = StatusSkipped
			action.Reason = "up to date"
			return action
		}

		if err := checkAddressType(recordType, address); err != nil {
			r.logger.Error("refusing to replace record",
				slog.String("record", name),
				slog.String("type", recordType),
				slog.String("value", liveValue),
				slog.String("error", err.Error()),
			)
			action.Status = StatusFailed
			action.Error = err.Error()
			return action
		}

		if r.config.DryRun {
			r.logger.Info("would remove record",
				slog.String("record", name),
				slog.String("type", recordType),
				slog.String("value", liveValue),
			)
			ws.remove(idx)
			action.Status = StatusSuccess
			return action
		}

		if err := r.store.RemoveRecord(ctx, name, recordType, liveValue); err != nil {
			r.logger.Error("failed to remove record",
				slog.String("record", name),
				slog.String("type", recordType),
				slog.String("value", liveValue),
				slog.String("error", err.Error()),
			)
			action.Status = StatusFailed
			action.Error = err.Error()
			return action
		}

		r.logger.Info("removed record",
			slog.String("record", name),
			slog.String("type", recordType),
			slog.String("value", liveValue),
		)
		ws.remove(idx)
		action.Status = StatusSuccess
		return action

	default:
		panic(fmt.Sprintf("reconciler: unhandled update mode %s for %s %s", rec.UpdateMode, recordType, name))
	}
}

func (r *Reconciler) addPhase(ctx context.Context, z zone.Zone, rec zone.Record, address string, ws *workingSet) Action {
	name := z.Qualify(rec.Name)
	recordType := rec.Type.String()

	action := Action{
		Phase: PhaseAdd,
		Zone:  z.Name,
		Name:  name,
		Type:  recordType,
	}

	if idx := ws.match(name, recordType); idx >= 0 {
		// A matched EnsureExists record may hold another declaration's value.
		action.Value = ws.records[idx].Value
		if rec.UpdateMode == zone.EnsureExists {
			action.Value = rec.Value
		}
		action.Status = StatusSkipped
		action.Reason = "present"
		return action
	}

	var value string
	switch rec.UpdateMode {
	case zone.EnsureExists:
		value = rec.Value
	case zone.PublicIp:
		if address == "" {
			r.logger.Error("unable to determine public address",
				slog.String("record", name),
				slog.String("type", recordType),
			)
			action.Status = StatusFailed
			action.Error = "public address unavailable"
			return action
		}
		if err := checkAddressType(recordType, address); err != nil {
			r.logger.Error("refusing to add record",
				slog.String("record", name),
				slog.String("type", recordType),
				slog.String("error", err.Error()),
			)
			action.Status = StatusFailed
			action.Error = err.Error()
			return action
		}
		value = address
	default:
		panic(fmt.Sprintf("reconciler: unhandled update mode %s for %s %s", rec.UpdateMode, recordType, name))
	}
	action.Value = value

	if r.config.DryRun {
		r.logger.Info("would add record",
			slog.String("record", name),
			slog.String("type", recordType),
			slog.String("value", value),
		)
		action.Status = StatusSuccess
		return action
	}

	if err := r.store.AddRecord(ctx, name, recordType, value); err != nil {
		r.logger.Error("failed to add record",
			slog.String("record", name),
			slog.String("type", recordType),
			slog.String("value", value),
			slog.String("error", err.Error()),
		)
		action.Status = StatusFailed
		action.Error = err.Error()
		return action
	}

	r.logger.Info("added record",
		slog.String("record", name),
		slog.String("type", recordType),
		slog.String("value", value),
	)
	action.Status = StatusSuccess
	return action
}

// checkAddressType reports whether address can be the value of a record of
// the given type. An A record only takes an IPv4 address.
func checkAddressType(recordType, address string) error {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return fmt.Errorf("public address %q is not an IP address", address)
	}
	if recordType == zone.TypeA.String() && !addr.Is4() {
		return fmt.Errorf("public address %s cannot be stored in an A record", address)
	}
	return nil
}

func (r *Reconciler) recordMetrics(result *Result) {
	status := "success"
	if result.HasErrors() {
		status = "error"
	}
	metrics.ReconciliationsTotal.WithLabelValues(status).Inc()
	metrics.ReconciliationDuration.Observe(result.Duration().Seconds())
	metrics.LastReconciliationTimestamp.Set(float64(result.EndTime.Unix()))

	if result.DryRun {
		return
	}

	for _, a := range result.Actions {
		switch a.Status {
		case StatusSkipped:
			metrics.RecordsSkippedTotal.WithLabelValues(string(a.Phase)).Inc()
		case StatusFailed:
			metrics.RecordsFailedTotal.WithLabelValues(a.Zone, string(a.Phase)).Inc()
		case StatusSuccess:
			if a.Phase == PhaseAdd {
				metrics.RecordsAddedTotal.WithLabelValues(a.Zone).Inc()
			} else {
				metrics.RecordsRemovedTotal.WithLabelValues(a.Zone).Inc()
			}
		}
	}
}

func (r *Reconciler) save(ctx context.Context, result *Result) {
	if r.recorder == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := r.recorder.Save(saveCtx, result); err != nil {
		r.logger.Warn("failed to record reconciliation history",
			slog.String("error", err.Error()),
		)
	}
}
