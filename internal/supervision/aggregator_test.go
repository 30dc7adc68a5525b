package supervision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/influxdb"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/metrics"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/store/storetest"
	"github.com/onap/policy-clamp-acm/internal/transition"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

type fakeStats struct {
	mu           sync.Mutex
	elements     []influxdb.ElementRecord
	participants []influxdb.ParticipantRecord
}

func (f *fakeStats) WriteElementStatistics(r influxdb.ElementRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements = append(f.elements, r)
}

func (f *fakeStats) WriteParticipantStatistics(r influxdb.ParticipantRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants = append(f.participants, r)
}

type fixture struct {
	agg          *Aggregator
	compositions store.CompositionStore
	definitions  store.DefinitionStore
	participants store.ParticipantStore
	stats        *fakeStats
	def          *model.CompositionDefinition

	mu       sync.Mutex
	notified []*model.AutomationComposition
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storetest.OpenDB(t)
	f := &fixture{
		compositions: store.NewSQLiteCompositionRepository(db),
		definitions:  store.NewSQLiteDefinitionRepository(db),
		participants: store.NewSQLiteParticipantRepository(db),
		stats:        &fakeStats{},
		def:          storetest.Definition("def-1"),
	}
	require.NoError(t, f.definitions.Create(context.Background(), f.def))

	f.agg = New(Deps{
		Compositions: f.compositions,
		Definitions:  f.definitions,
		Participants: f.participants,
		Locker:       coordination.NewLocalLocker(),
		Metrics:      metrics.New(),
		Stats:        f.stats,
		Workers:      4,
	})
	f.agg.OnComposition(func(ac *model.AutomationComposition) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.notified = append(f.notified, ac)
	})
	return f
}

// deploying stores an instance that has just accepted DEPLOY.
func (f *fixture) deploying(t *testing.T, instanceID string) *model.AutomationComposition {
	t.Helper()
	ac := storetest.Composition(instanceID, "def-1")
	require.NoError(t, transition.Accept(ac, model.OrderDeploy, f.def.Template, time.Now().UTC()))
	require.NoError(t, f.compositions.Create(context.Background(), ac))
	return ac
}

func (f *fixture) get(t *testing.T, instanceID string) *model.AutomationComposition {
	t.Helper()
	ac, err := f.compositions.Get(context.Background(), instanceID)
	require.NoError(t, err)
	return ac
}

func deployed(instanceID, elementID, participantID string) transport.StatusReport {
	return transport.StatusReport{
		ParticipantID:     participantID,
		InstanceID:        instanceID,
		ElementID:         elementID,
		DeployState:       model.DeployStateDeployed,
		LockState:         model.LockStateLocked,
		SubState:          model.SubStateNone,
		OperationalState:  "ENABLED",
		StateChangeResult: model.StateChangeResultNoError,
	}
}

// ─── Handle ────────────────────────────────────────────────────────

func TestHandle_AppliesAndRollsUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deploying(t, "inst-1")

	require.NoError(t, f.agg.Handle(ctx, deployed("inst-1", "e-http", "p-http")))

	ac := f.get(t, "inst-1")
	assert.Equal(t, model.DeployStateDeploying, ac.DeployState)
	assert.Equal(t, model.DeployStateDeployed, ac.Element("e-http").DeployState)
	assert.Equal(t, "ENABLED", ac.Element("e-http").OperationalState)

	report := deployed("inst-1", "e-k8s", "p-k8s")
	report.OutProperties = map[string]any{"pod": "demo-0"}
	require.NoError(t, f.agg.Handle(ctx, report))

	ac = f.get(t, "inst-1")
	assert.Equal(t, model.DeployStateDeployed, ac.DeployState)
	assert.Equal(t, model.LockStateLocked, ac.LockState)
	assert.Equal(t, model.StateChangeResultNoError, ac.StateChangeResult)
	assert.Nil(t, ac.Phase)
	assert.Equal(t, "demo-0", ac.Element("e-k8s").OutProperties["pod"])

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.notified, 2)
	assert.Equal(t, model.DeployStateDeployed, f.notified[1].DeployState)
	assert.Len(t, f.stats.elements, 2)
}

func TestHandle_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deploying(t, "inst-1")

	r := deployed("inst-1", "e-http", "p-http")
	require.NoError(t, f.agg.Handle(ctx, r))
	once := f.get(t, "inst-1")

	require.NoError(t, f.agg.Handle(ctx, r))
	twice := f.get(t, "inst-1")

	once.LastMsg, twice.LastMsg = time.Time{}, time.Time{}
	once.UpdatedAt, twice.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, once, twice)
}

func TestHandle_DropsUnknownAndStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deploying(t, "inst-1")
	before := f.get(t, "inst-1")

	err := f.agg.Handle(ctx, deployed("ghost", "e-http", "p-http"))
	assert.True(t, errors.Is(err, ErrUnknownComposition), "got %v", err)

	err = f.agg.Handle(ctx, deployed("inst-1", "e-nope", "p-http"))
	assert.True(t, errors.Is(err, ErrUnknownElement), "got %v", err)
	assert.True(t, errors.Is(err, ErrDropped))

	err = f.agg.Handle(ctx, deployed("inst-1", "e-http", "p-k8s"))
	assert.True(t, errors.Is(err, ErrStaleParticipant), "got %v", err)

	after := f.get(t, "inst-1")
	assert.Equal(t, before.Elements, after.Elements)
	assert.Equal(t, before.LastMsg, after.LastMsg)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.notified)
}

func TestHandle_LateReportCannotUnsettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deploying(t, "inst-1")
	require.NoError(t, f.agg.Handle(ctx, deployed("inst-1", "e-http", "p-http")))
	require.NoError(t, f.agg.Handle(ctx, deployed("inst-1", "e-k8s", "p-k8s")))
	settled := f.get(t, "inst-1")
	require.Equal(t, model.DeployStateDeployed, settled.DeployState)

	late := deployed("inst-1", "e-http", "p-http")
	late.DeployState = model.DeployStateUndeployed
	late.LockState = model.LockStateNone
	err := f.agg.Handle(ctx, late)
	assert.True(t, errors.Is(err, ErrUnreachableState), "got %v", err)
	assert.True(t, errors.Is(err, ErrDropped))

	after := f.get(t, "inst-1")
	assert.Equal(t, settled.Elements, after.Elements)
	assert.Equal(t, model.DeployStateDeployed, after.DeployState)
	assert.Equal(t, model.LockStateLocked, after.LockState)

	// A duplicate of the final report only refreshes operational fields.
	dup := deployed("inst-1", "e-http", "p-http")
	dup.OperationalState = "DEGRADED"
	dup.SubState = model.SubStatePreparing
	dup.Stage = model.IntPtr(3)
	require.NoError(t, f.agg.Handle(ctx, dup))

	refreshed := f.get(t, "inst-1")
	e := refreshed.Element("e-http")
	assert.Equal(t, "DEGRADED", e.OperationalState)
	assert.Equal(t, model.DeployStateDeployed, e.DeployState)
	assert.Equal(t, model.SubStateNone, e.SubState)
	assert.Nil(t, e.Stage)
	assert.False(t, refreshed.InTransition())
}

func TestHandle_DropsUnreachableInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deploying(t, "inst-1")
	before := f.get(t, "inst-1")

	r := deployed("inst-1", "e-http", "p-http")
	r.DeployState = model.DeployStateDeleted
	r.LockState = model.LockStateNone
	err := f.agg.Handle(ctx, r)
	assert.True(t, errors.Is(err, ErrUnreachableState), "got %v", err)
	assert.Equal(t, before.Elements, f.get(t, "inst-1").Elements)

	// A failed deploy may fall back to where it started.
	back := deployed("inst-1", "e-http", "p-http")
	back.DeployState = model.DeployStateUndeployed
	back.LockState = model.LockStateNone
	back.StateChangeResult = model.StateChangeResultFailed
	require.NoError(t, f.agg.Handle(ctx, back))
	assert.Equal(t, model.StateChangeResultFailed, f.get(t, "inst-1").StateChangeResult)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.notified, 1)
}

func TestHandle_FailedReportMarksComposition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deploying(t, "inst-1")

	r := deployed("inst-1", "e-http", "p-http")
	r.DeployState = model.DeployStateDeploying
	r.LockState = model.LockStateNone
	r.StateChangeResult = model.StateChangeResultFailed
	r.Message = "endpoint unreachable"
	require.NoError(t, f.agg.Handle(ctx, r))

	ac := f.get(t, "inst-1")
	assert.Equal(t, model.StateChangeResultFailed, ac.StateChangeResult)
	assert.Equal(t, model.DeployStateDeploying, ac.DeployState)
	assert.Equal(t, "endpoint unreachable", ac.Element("e-http").Message)
}

func TestHandle_DeleteRemovesComposition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ac := storetest.Composition("inst-1", "def-1")
	require.NoError(t, transition.Accept(ac, model.OrderDelete, f.def.Template, time.Now().UTC()))
	require.NoError(t, f.compositions.Create(ctx, ac))

	for _, e := range ac.Elements {
		require.NoError(t, f.agg.Handle(ctx, transport.StatusReport{
			ParticipantID: e.ParticipantID,
			InstanceID:    "inst-1",
			ElementID:     e.ID,
			DeployState:   model.DeployStateDeleted,
			LockState:     model.LockStateNone,
			SubState:      model.SubStateNone,
		}))
	}

	_, err := f.compositions.Get(ctx, "inst-1")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	f.mu.Lock()
	defer f.mu.Unlock()
	last := f.notified[len(f.notified)-1]
	assert.Equal(t, model.DeployStateDeleted, last.DeployState)
}

func TestHandle_StageProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ac := storetest.Composition("inst-1", "def-1")
	ac.CompositionTargetID = "def-1"
	transition.Apply(ac, model.Transition{Deploy: model.DeployStateMigrating, Lock: model.LockStateLocked, Sub: model.SubStateNone}, f.def.Template, time.Now().UTC())
	require.NoError(t, f.compositions.Create(ctx, ac))

	r := deployed("inst-1", "e-http", "p-http")
	r.DeployState = model.DeployStateMigrating
	r.Stage = model.IntPtr(1)
	require.NoError(t, f.agg.Handle(ctx, r))

	got := f.get(t, "inst-1")
	require.NotNil(t, got.Element("e-http").Stage)
	assert.Equal(t, 1, *got.Element("e-http").Stage)
	assert.Equal(t, model.DeployStateMigrating, got.DeployState)
}

// ─── Run ───────────────────────────────────────────────────────────

func TestRun_AppliesReportsInOrderPerComposition(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"inst-1", "inst-2", "inst-3"} {
		f.deploying(t, id)
	}

	reports := make(chan transport.StatusReport, 32)
	for _, id := range []string{"inst-1", "inst-2", "inst-3"} {
		progress := deployed(id, "e-http", "p-http")
		progress.DeployState = model.DeployStateDeploying
		progress.LockState = model.LockStateNone
		reports <- progress
		reports <- deployed(id, "e-http", "p-http")
		reports <- deployed(id, "e-k8s", "p-k8s")
	}
	reports <- deployed("ghost", "e-http", "p-http")
	close(reports)

	done := make(chan error, 1)
	go func() { done <- f.agg.Run(context.Background(), reports) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the channel closed")
	}

	for _, id := range []string{"inst-1", "inst-2", "inst-3"} {
		ac := f.get(t, id)
		assert.Equal(t, model.DeployStateDeployed, ac.DeployState, id)
		assert.Equal(t, model.LockStateLocked, ac.LockState, id)
	}
}

func TestRunParticipants(t *testing.T) {
	f := newFixture(t)
	heartbeats := make(chan transport.Heartbeat, 1)
	acks := make(chan transport.PrimeAck, 1)
	heartbeats <- transport.Heartbeat{ParticipantID: "p-new"}
	acks <- transport.PrimeAck{ParticipantID: "p-new", CompositionID: "nothing", State: model.DefinitionStatePrimed}
	close(heartbeats)
	close(acks)

	require.NoError(t, f.agg.RunParticipants(context.Background(), heartbeats, acks))

	p, err := f.participants.Get(context.Background(), "p-new")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStateOnline, p.State)
}

// ─── Rollup ────────────────────────────────────────────────────────

func doneElements(ac *model.AutomationComposition) {
	t := model.Transition{
		Deploy: model.DeployCompleted(ac.DeployState),
		Lock:   model.LockCompleted(ac.DeployState, ac.LockState),
		Sub:    model.SubStateNone,
	}
	for i := range ac.Elements {
		ac.Elements[i].DeployState = t.Deploy
		ac.Elements[i].LockState = t.Lock
		ac.Elements[i].SubState = t.Sub
	}
}

func TestRollup(t *testing.T) {
	tmpl := storetest.Definition("def-1").Template

	idle := storetest.Composition("inst-1", "def-1")
	assert.Equal(t, RollupIdle, Rollup(idle))

	pending := storetest.Composition("inst-1", "def-1")
	require.NoError(t, transition.Accept(pending, model.OrderDeploy, tmpl, time.Now()))
	assert.Equal(t, RollupPending, Rollup(pending))
	assert.Equal(t, model.DeployStateDeploying, pending.DeployState)

	doneElements(pending)
	assert.Equal(t, RollupCompleted, Rollup(pending))
	assert.Equal(t, model.DeployStateDeployed, pending.DeployState)
	assert.Equal(t, model.LockStateLocked, pending.LockState)
	assert.Nil(t, pending.Phase)
	assert.Equal(t, "completed", RollupCompleted.String())
}

func TestRollup_MigrationSwitchesDefinition(t *testing.T) {
	ac := storetest.Composition("inst-1", "def-1")
	ac.CompositionTargetID = "def-2"
	transition.Apply(ac, model.Transition{Deploy: model.DeployStateMigrating, Lock: model.LockStateLocked, Sub: model.SubStateNone},
		storetest.Definition("def-2").Template, time.Now())
	require.NotNil(t, ac.Elements[0].Stage)

	doneElements(ac)
	assert.Equal(t, RollupCompleted, Rollup(ac))
	assert.Equal(t, "def-2", ac.CompositionID)
	assert.Empty(t, ac.CompositionTargetID)
	assert.Nil(t, ac.Elements[0].Stage)
}

func TestRollup_PrecheckKeepsDefinition(t *testing.T) {
	ac := storetest.Composition("inst-1", "def-1")
	ac.CompositionTargetID = "def-2"
	transition.Apply(ac, model.Transition{Deploy: model.DeployStateDeployed, Lock: model.LockStateLocked, Sub: model.SubStateMigrationPrechecking},
		storetest.Definition("def-2").Template, time.Now())

	doneElements(ac)
	assert.Equal(t, RollupCompleted, Rollup(ac))
	assert.Equal(t, "def-1", ac.CompositionID)
	assert.Empty(t, ac.CompositionTargetID)
	assert.Equal(t, model.SubStateNone, ac.SubState)
}
