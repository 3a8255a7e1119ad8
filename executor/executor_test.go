package executor_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/caffeineduck/webfdw/executor"
	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/hostfunc"
	"github.com/caffeineduck/webfdw/version"
)

// Shared executor to avoid recompiling the guest per test. These are
// integration tests against the real guest built by go generate; they
// skip when testdata/guest.wasm is absent.
var (
	sharedExec  *executor.Executor
	sharedGuest executor.Module
)

func TestMain(m *testing.M) {
	mod, err := executor.LoadModule("testdata/guest.wasm")
	if err == nil {
		sharedGuest = mod
		sharedExec, err = executor.New(hostfunc.NewRegistry(), executor.WithPrecompile(mod))
		if err != nil {
			panic("failed to create shared executor: " + err.Error())
		}
	}

	code := m.Run()

	if sharedExec != nil {
		sharedExec.Close()
	}
	os.Exit(code)
}

func requireGuest(t *testing.T) {
	t.Helper()
	if sharedExec == nil {
		t.Skip("testdata/guest.wasm not built; run go generate ./executor")
	}
}

func TestLoadModule(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/events.wasm"
	if err := os.WriteFile(path, []byte("\x00asm\x01\x00\x00\x00"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	mod, err := executor.LoadModule(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasPrefix(mod.Name(), "events-") || len(mod.Name()) != len("events-")+12 {
		t.Errorf("unexpected module name %q", mod.Name())
	}

	if _, err := executor.LoadModule(dir + "/missing.wasm"); err == nil {
		t.Error("expected error for missing module")
	}
}

func TestInvalidModuleFailsToCompile(t *testing.T) {
	exec, err := executor.New(hostfunc.NewRegistry())
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	defer exec.Close()

	_, err = exec.NewSession(executor.NewModule("junk", []byte("not wasm")))
	if err == nil || !strings.Contains(err.Error(), "compile junk") {
		t.Errorf("expected compile error, got %v", err)
	}
}

func TestClosedExecutor(t *testing.T) {
	exec, err := executor.New(hostfunc.NewRegistry())
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	exec.Close()

	_, err = exec.NewSession(executor.NewModule("junk", []byte("not wasm")))
	if !errors.Is(err, executor.ErrExecutorClosed) {
		t.Errorf("expected ErrExecutorClosed, got %v", err)
	}
}

func TestGuestScanInSandbox(t *testing.T) {
	requireGuest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", `<`+"http://"+r.Host+`/events?page=2>; rel="next"`)
			w.Write([]byte(`[{"id":1,"created_at":"2024-03-01T10:20:30Z"}]`))
			return
		}
		w.Write([]byte(`[{"id":2,"created_at":"2024-03-02T10:20:30Z"}]`))
	}))
	defer server.Close()

	session, err := sharedExec.NewSession(sharedGuest, executor.WithSessionAllowedHosts([]string{"127.0.0.1"}))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Close()

	c := fdw.NewContext(fdw.Table{
		Name: "events",
		Columns: []fdw.Column{
			{Name: "id", Type: fdw.TypeInt64},
			{Name: "created_at", Type: fdw.TypeTimestampTZ},
		},
		Options: fdw.Options{"api_url": server.URL, "object": "events"},
	})
	if err := session.Init(c); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := session.BeginScan(c); err != nil {
		t.Fatalf("begin scan: %v", err)
	}

	var ids []int64
	for {
		row, ok, err := session.IterScan(c)
		if err != nil {
			t.Fatalf("iter scan: %v", err)
		}
		if !ok {
			break
		}
		id, _ := row[0].Int()
		ids = append(ids, id)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("expected ids [1 2], got %v", ids)
	}
	session.EndScan(c)
}

func TestGuestVersionGateInSandbox(t *testing.T) {
	requireGuest(t)

	_, err := sharedExec.NewSession(sharedGuest, executor.WithHostVersion("0.2.0"))
	var me *version.MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected *version.MismatchError, got %v", err)
	}
}

func TestGuestWritesUnsupportedInSandbox(t *testing.T) {
	requireGuest(t)

	session, err := sharedExec.NewSession(sharedGuest)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Close()

	c := fdw.NewContext(fdw.Table{Name: "t", Options: fdw.Options{"api_url": "https://a.test", "object": "x"}})
	if err := session.BeginModify(c.WithContext(context.Background())); !errors.Is(err, fdw.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
