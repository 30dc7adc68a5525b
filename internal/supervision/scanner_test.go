package supervision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store/storetest"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

func scannerConfig() ScannerConfig {
	return ScannerConfig{
		Interval:       time.Second,
		DefaultTimeout: time.Minute,
		UnhealthyAfter: time.Minute,
		OfflineAfter:   5 * time.Minute,
	}
}

// ─── Heartbeats & Prime Acks ───────────────────────────────────────

func TestHandleHeartbeat_RegistersAndRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	types := []model.ElementType{{Name: "org.onap.policy.clamp.acm.HttpAutomationCompositionElement", Version: "1.0.0"}}

	require.NoError(t, f.agg.HandleHeartbeat(ctx, transport.Heartbeat{ParticipantID: "p-http", SupportedElementTypes: types}))
	p, err := f.participants.Get(ctx, "p-http")
	require.NoError(t, err)
	assert.Equal(t, model.HealthHealthy, p.Health)
	assert.Equal(t, types, p.SupportedElementTypes)
	created := p.CreatedAt

	p.Health = model.HealthOffline
	p.State = model.ParticipantStateOffline
	require.NoError(t, f.participants.Save(ctx, p))

	require.NoError(t, f.agg.HandleHeartbeat(ctx, transport.Heartbeat{ParticipantID: "p-http"}))
	p, err = f.participants.Get(ctx, "p-http")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStateOnline, p.State)
	assert.Equal(t, model.HealthHealthy, p.Health)
	assert.Equal(t, types, p.SupportedElementTypes, "empty heartbeat keeps registered types")
	assert.Equal(t, created, p.CreatedAt)
	assert.Len(t, f.stats.participants, 2)
}

func primingDefinition(t *testing.T, f *fixture) {
	t.Helper()
	def := storetest.Definition("def-p")
	def.State = model.DefinitionStatePriming
	for name, es := range def.ElementStates {
		es.State = model.DefinitionStatePriming
		def.ElementStates[name] = es
	}
	require.NoError(t, f.definitions.Create(context.Background(), def))
}

func TestHandlePrimeAck_CompletesWhenAllAcked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primingDefinition(t, f)

	var seen []model.DefinitionState
	f.agg.OnDefinition(func(d *model.CompositionDefinition) { seen = append(seen, d.State) })

	require.NoError(t, f.agg.HandlePrimeAck(ctx, transport.PrimeAck{
		ParticipantID: "p-http",
		CompositionID: "def-p",
		State:         model.DefinitionStatePrimed,
		OutProperties: map[string]map[string]any{"http": {"endpoint": "ready"}},
	}))
	def, err := f.definitions.Get(ctx, "def-p")
	require.NoError(t, err)
	assert.Equal(t, model.DefinitionStatePriming, def.State)
	assert.Equal(t, model.DefinitionStatePrimed, def.ElementStates["http"].State)
	assert.Equal(t, "ready", def.ElementStates["http"].OutProperties["endpoint"])

	require.NoError(t, f.agg.HandlePrimeAck(ctx, transport.PrimeAck{
		ParticipantID: "p-k8s",
		CompositionID: "def-p",
		State:         model.DefinitionStatePrimed,
	}))
	def, err = f.definitions.Get(ctx, "def-p")
	require.NoError(t, err)
	assert.Equal(t, model.DefinitionStatePrimed, def.State)
	assert.Equal(t, []model.DefinitionState{model.DefinitionStatePriming, model.DefinitionStatePrimed}, seen)

	err = f.agg.HandlePrimeAck(ctx, transport.PrimeAck{ParticipantID: "p-k8s", CompositionID: "def-p", State: model.DefinitionStatePrimed})
	assert.True(t, errors.Is(err, ErrUnexpectedAck), "got %v", err)
}

func TestHandlePrimeAck_Failure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primingDefinition(t, f)

	require.NoError(t, f.agg.HandlePrimeAck(ctx, transport.PrimeAck{
		ParticipantID:     "p-http",
		CompositionID:     "def-p",
		State:             model.DefinitionStatePrimed,
		StateChangeResult: model.StateChangeResultFailed,
		Message:           "chart repository unavailable",
	}))

	def, err := f.definitions.Get(ctx, "def-p")
	require.NoError(t, err)
	assert.Equal(t, model.DefinitionStatePriming, def.State)
	assert.Equal(t, model.StateChangeResultFailed, def.StateChangeResult)
	assert.Equal(t, model.DefinitionStatePriming, def.ElementStates["http"].State)
	assert.Equal(t, "chart repository unavailable", def.ElementStates["http"].Message)

	err = f.agg.HandlePrimeAck(ctx, transport.PrimeAck{ParticipantID: "p-http", CompositionID: "ghost", State: model.DefinitionStatePrimed})
	assert.True(t, errors.Is(err, ErrUnknownDefinition))
}

// ─── Scanner ───────────────────────────────────────────────────────

func TestScanner_TimesOutStalledComposition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.agg.now = func() time.Time { return now }

	stalled := f.deploying(t, "inst-old")
	stalled.LastMsg = now.Add(-2 * time.Minute)
	stalled.Element("e-http").DeployState = model.DeployStateDeployed
	stalled.Element("e-http").LockState = model.LockStateLocked
	require.NoError(t, f.compositions.Update(ctx, stalled))

	fresh := f.deploying(t, "inst-new")
	fresh.LastMsg = now.Add(-10 * time.Second)
	require.NoError(t, f.compositions.Update(ctx, fresh))

	require.NoError(t, NewScanner(f.agg, scannerConfig()).Scan(ctx))

	got := f.get(t, "inst-old")
	assert.Equal(t, model.StateChangeResultTimeout, got.StateChangeResult)
	assert.Equal(t, model.DeployStateDeploying, got.DeployState)
	assert.Empty(t, got.Element("e-http").Message)
	assert.Contains(t, got.Element("e-k8s").Message, "p-k8s")

	assert.Equal(t, model.StateChangeResultNoError, f.get(t, "inst-new").StateChangeResult)
}

func TestScanner_UsesTemplateTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.agg.now = func() time.Time { return now }

	// deployTimeoutMs is 60s in the template; the default is raised past
	// the composition's age so only the template value can fire.
	ac := f.deploying(t, "inst-1")
	ac.LastMsg = now.Add(-90 * time.Second)
	require.NoError(t, f.compositions.Update(ctx, ac))

	cfg := scannerConfig()
	cfg.DefaultTimeout = time.Hour
	require.NoError(t, NewScanner(f.agg, cfg).Scan(ctx))
	assert.Equal(t, model.StateChangeResultTimeout, f.get(t, "inst-1").StateChangeResult)
}

func TestScanner_TimesOutPriming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primingDefinition(t, f)

	f.agg.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	require.NoError(t, NewScanner(f.agg, scannerConfig()).Scan(ctx))

	def, err := f.definitions.Get(ctx, "def-p")
	require.NoError(t, err)
	assert.Equal(t, model.StateChangeResultTimeout, def.StateChangeResult)
	assert.Equal(t, model.DefinitionStatePriming, def.State)
}

func TestScanner_DegradesParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.agg.now = func() time.Time { return now }

	ages := map[string]time.Duration{
		"p-http": 90 * time.Second,
		"p-k8s":  10 * time.Minute,
	}
	for _, p := range storetest.Participants() {
		p.LastSeen = now.Add(-ages[p.ParticipantID])
		p.CreatedAt = now.Add(-time.Hour)
		require.NoError(t, f.participants.Save(ctx, p))
	}
	fresh := storetest.Participants()[0]
	fresh.ParticipantID = "p-fresh"
	fresh.LastSeen = now.Add(-5 * time.Second)
	require.NoError(t, f.participants.Save(ctx, fresh))

	require.NoError(t, NewScanner(f.agg, scannerConfig()).Scan(ctx))

	httpP, err := f.participants.Get(ctx, "p-http")
	require.NoError(t, err)
	assert.Equal(t, model.HealthNotHealthy, httpP.Health)
	assert.Equal(t, model.ParticipantStateOnline, httpP.State)

	k8s, err := f.participants.Get(ctx, "p-k8s")
	require.NoError(t, err)
	assert.Equal(t, model.HealthOffline, k8s.Health)
	assert.Equal(t, model.ParticipantStateOffline, k8s.State)

	freshP, err := f.participants.Get(ctx, "p-fresh")
	require.NoError(t, err)
	assert.Equal(t, model.HealthHealthy, freshP.Health)
}

func TestScanner_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	cfg := scannerConfig()
	cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewScanner(f.agg, cfg).Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop")
	}
}
