package core

import (
	"context"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

// recordingModule tracks lifecycle calls.
type recordingModule struct {
	id          ModuleID
	configured  bool
	provisioned bool
	validated   bool
	started     bool
	stopped     bool
	startErr    error
	calls       *[]string
}

func (m *recordingModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *recordingModule) Configure(*yaml.Node) error {
	m.configured = true
	m.record("configure")
	return nil
}

func (m *recordingModule) Provision(ctx *AppContext) error {
	m.provisioned = true
	m.record("provision")
	ctx.RegisterService("svc."+string(m.id), m)
	return nil
}

func (m *recordingModule) Validate() error {
	m.validated = true
	m.record("validate")
	return nil
}

func (m *recordingModule) Start() error {
	m.started = true
	m.record("start")
	return m.startErr
}

func (m *recordingModule) Stop(context.Context) error {
	m.stopped = true
	m.record("stop")
	return nil
}

func (m *recordingModule) record(step string) {
	if m.calls != nil {
		*m.calls = append(*m.calls, string(m.id)+":"+step)
	}
}

func registerTestModule(t *testing.T, m *recordingModule) {
	t.Helper()
	// The global registry has no unregister; use unique IDs per test.
	RegisterModule(m)
}

func TestLoadModuleLifecycleOrder(t *testing.T) {
	var calls []string
	mod := &recordingModule{id: "test.lifecycle_order", calls: &calls}
	registerTestModule(t, mod)

	ctx := NewAppContext(nil, t.TempDir())
	loaded, err := ctx.LoadModule("test.lifecycle_order")
	if err != nil {
		t.Fatalf("LoadModule() = %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadModule() returned nil module")
	}

	// Configure is skipped without a config entry; provision then validate.
	want := []string{"test.lifecycle_order:provision", "test.lifecycle_order:validate"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestLoadModuleConfiguresWhenEntryPresent(t *testing.T) {
	mod := &recordingModule{id: "test.with_config"}
	registerTestModule(t, mod)

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("key: value"), &node); err != nil {
		t.Fatalf("parse yaml: %v", err)
	}

	ctx := NewAppContext(nil, t.TempDir()).WithModuleConfigs(map[string]yaml.Node{
		"test.with_config": node,
	})
	if _, err := ctx.LoadModule("test.with_config"); err != nil {
		t.Fatalf("LoadModule() = %v", err)
	}
	if !mod.configured {
		t.Error("Configure not called despite config entry")
	}
}

func TestLoadModuleUnknownID(t *testing.T) {
	t.Parallel()

	ctx := NewAppContext(nil, t.TempDir())
	if _, err := ctx.LoadModule("test.never_registered"); err == nil {
		t.Error("LoadModule(unknown) succeeded, want error")
	}
}

func TestServiceRegistrySharedAcrossModuleScopes(t *testing.T) {
	t.Parallel()

	ctx := NewAppContext(nil, t.TempDir())
	scopeA := ctx.ForModule("test.a")
	scopeB := ctx.ForModule("test.b")

	scopeA.RegisterService("shared.thing", 42)

	svc, ok := scopeB.Service("shared.thing")
	if !ok {
		t.Fatal("service registered in one scope not visible in another")
	}
	if svc.(int) != 42 {
		t.Errorf("service = %v, want 42", svc)
	}

	if _, ok := ctx.Service("missing"); ok {
		t.Error("missing service reported as present")
	}
}

func TestAppStartStopOrder(t *testing.T) {
	var calls []string
	first := &recordingModule{id: "test.order_first", calls: &calls}
	second := &recordingModule{id: "test.order_second", calls: &calls}
	registerTestModule(t, first)
	registerTestModule(t, second)

	ctx := NewAppContext(nil, t.TempDir())
	app := NewApp(ctx)
	if err := app.LoadModules([]string{"test.order_first", "test.order_second"}); err != nil {
		t.Fatalf("LoadModules() = %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	app.Stop()

	// Start in order, stop in reverse.
	want := []string{
		"test.order_first:provision", "test.order_first:validate",
		"test.order_second:provision", "test.order_second:validate",
		"test.order_first:start", "test.order_second:start",
		"test.order_second:stop", "test.order_first:stop",
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v\nwant %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestAppStartFailureStopsStartedModules(t *testing.T) {
	ok := &recordingModule{id: "test.fail_ok"}
	failing := &recordingModule{id: "test.fail_bad", startErr: errors.New("boom")}
	registerTestModule(t, ok)
	registerTestModule(t, failing)

	ctx := NewAppContext(nil, t.TempDir())
	app := NewApp(ctx)
	if err := app.LoadModules([]string{"test.fail_ok", "test.fail_bad"}); err != nil {
		t.Fatalf("LoadModules() = %v", err)
	}

	if err := app.Start(); err == nil {
		t.Fatal("Start() succeeded, want error")
	}
	if !ok.stopped {
		t.Error("previously started module not stopped after start failure")
	}
}

func TestRegisterModuleValidation(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("RegisterModule with empty ID did not panic")
		}
	}()
	RegisterModule(&recordingModule{id: ""})
}

func TestRegisterModuleDuplicatePanics(t *testing.T) {
	registerTestModule(t, &recordingModule{id: "test.duplicate"})

	defer func() {
		if recover() == nil {
			t.Error("duplicate RegisterModule did not panic")
		}
	}()
	RegisterModule(&recordingModule{id: "test.duplicate"})
}

func TestGetModulesSorted(t *testing.T) {
	registerTestModule(t, &recordingModule{id: "test.sorted_b"})
	registerTestModule(t, &recordingModule{id: "test.sorted_a"})

	infos := GetModules()
	for i := 1; i < len(infos); i++ {
		if infos[i-1].ID >= infos[i].ID {
			t.Fatalf("GetModules() not sorted: %q before %q", infos[i-1].ID, infos[i].ID)
		}
	}

	if _, ok := GetModule("test.sorted_a"); !ok {
		t.Error("GetModule(test.sorted_a) not found")
	}
}
