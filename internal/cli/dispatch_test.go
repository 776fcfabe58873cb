package cli_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"tasklist/internal/cli"
	"tasklist/internal/commands"
	"tasklist/internal/config"
	"tasklist/internal/exitcode"
	"tasklist/internal/session"
	"tasklist/internal/testutil"
)

// testFactory is cli.NewEnv with repository and client warnings discarded,
// so stderr only holds what commands print.
func testFactory(ctx context.Context, cfg *config.Config, _ *slog.Logger, reg prometheus.Registerer) (*commands.Env, error) {
	return cli.NewEnv(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), reg)
}

type harness struct {
	t          *testing.T
	fake       *testutil.FakeServer
	dispatcher *cli.Dispatcher
	configDir  string
	stdin      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		fake:      testutil.NewFakeServer(t),
		configDir: t.TempDir(),
		stdin:     &bytes.Buffer{},
	}
	h.dispatcher = cli.NewDispatcher(commands.DefaultRegistry, testFactory, cli.WithStdin(h.stdin))
	return h
}

// run dispatches args with --config and --api-url pointing at the harness.
func (h *harness) run(args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	full := append(args, "--config", h.configDir, "--api-url", h.fake.BaseURL())

	var outBuf, errBuf bytes.Buffer
	code = h.dispatcher.Run(context.Background(), full, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	stdout, stderr, code := h.run(args...)
	if code != exitcode.Success {
		h.t.Fatalf("%v: expected success, got %d (stderr %q)", args, code, stderr)
	}
	return stdout
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory)

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"unknowncmd"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory)

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"--quiet"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	h := newHarness(t)

	stdout, stderr, code := h.run("help")
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_HelpFlag(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := h.run("add", "--help")
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Errorf("expected help output, got %q", stdout)
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := h.run("version")
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "tasklist 0.1.0\n" {
		t.Errorf("unexpected version output %q", stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	h := newHarness(t)

	_, stderr, code := h.run("list", "--bogus")
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unknown flag: --bogus\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_MissingFlagValue(t *testing.T) {
	h := newHarness(t)

	var stdout, stderr bytes.Buffer
	code := h.dispatcher.Run(context.Background(), []string{"list", "--filter"}, &stdout, &stderr)
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.HasPrefix(stderr.String(), "error: flag needs an argument") {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}

func TestDispatcher_InvalidAPIURL(t *testing.T) {
	h := newHarness(t)

	var stdout, stderr bytes.Buffer
	code := h.dispatcher.Run(context.Background(), []string{"list", "--config", h.configDir, "--api-url", "nope"}, &stdout, &stderr)
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr.String(), "api.url") {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}

func TestDispatcher_NotLoggedIn(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{{"list"}, {"add", "x"}, {"done", "1"}, {"whoami"}} {
		_, stderr, code := h.run(args...)
		if code != exitcode.AuthError {
			t.Errorf("%v: expected exit code %d, got %d", args, exitcode.AuthError, code)
		}
		if stderr != "error: not logged in (run: tasklist login)\n" {
			t.Errorf("%v: unexpected stderr %q", args, stderr)
		}
	}
	if n := h.fake.Calls("GET /api/tasks/{$}"); n != 0 {
		t.Errorf("expected no task requests, got %d", n)
	}
}

func TestDispatcher_NoArgsLists(t *testing.T) {
	h := newHarness(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("TASKLIST_API_URL", h.fake.BaseURL())
	h.configDir = filepath.Join(xdg, config.AppName)

	h.fake.AddUser("a@x.com", "secret")
	h.mustRun("login", "a@x.com", "--password", "secret")
	h.fake.AddTask("a@x.com", "t1", "Buy milk", false)

	var stdout, stderr bytes.Buffer
	code := h.dispatcher.Run(context.Background(), nil, &stdout, &stderr)
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "   1  [ ] Buy milk\n") {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
}

func TestDispatcher_EndToEnd(t *testing.T) {
	h := newHarness(t)

	if out := h.mustRun("register", "new@x.com", "--password", "secret"); out != "registered and logged in as new@x.com\n" {
		t.Errorf("unexpected register output %q", out)
	}

	// the session survives across invocations in the encrypted file
	if _, err := os.Stat(filepath.Join(h.configDir, session.DataFile)); err != nil {
		t.Errorf("expected session file: %v", err)
	}

	h.mustRun("add", "Buy", "milk")
	h.mustRun("add", "Walk", "dog")
	h.mustRun("done", "1")
	h.mustRun("edit", "2", "Walk", "the", "dog")

	expected := "   1  [x] Buy milk\n   2  [ ] Walk the dog\n2 total, 1 active, 1 completed\n"
	if out := h.mustRun("list"); out != expected {
		t.Errorf("expected %q, got %q", expected, out)
	}
	if out := h.mustRun("list", "--filter", "active", "--quiet"); out != "   2  [ ] Walk the dog\n" {
		t.Errorf("unexpected filtered list %q", out)
	}

	h.mustRun("rm", "1")
	if out := h.mustRun("ls", "--quiet"); out != "   1  [ ] Walk the dog\n" {
		t.Errorf("unexpected list after rm %q", out)
	}

	if out := h.mustRun("whoami"); out != "new@x.com\n" {
		t.Errorf("unexpected whoami %q", out)
	}

	if out := h.mustRun("logout"); out != "ok\n" {
		t.Errorf("unexpected logout output %q", out)
	}
	if _, err := os.Stat(filepath.Join(h.configDir, session.KeyFile)); !os.IsNotExist(err) {
		t.Errorf("expected key file removed, got %v", err)
	}

	_, _, code := h.run("list")
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d after logout, got %d", exitcode.AuthError, code)
	}
}

func TestDispatcher_LoginPasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	h.fake.AddUser("a@x.com", "secret")
	h.stdin.WriteString("secret\n")

	stdout, stderr, code := h.run("login", "a@x.com", "--quiet")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "" || stderr != "" {
		t.Errorf("expected no output with --quiet, got %q / %q", stdout, stderr)
	}
}

func TestDispatcher_SessionExpired(t *testing.T) {
	h := newHarness(t)
	h.fake.AddUser("a@x.com", "secret")
	h.mustRun("login", "a@x.com", "--password", "secret")

	h.fake.ExpireAccessTokens()
	h.fake.RevokeRefreshTokens()

	_, stderr, code := h.run("list")
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: session expired (run: tasklist login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_CorruptSessionFileRecoversOnLogin(t *testing.T) {
	h := newHarness(t)
	h.fake.AddUser("a@x.com", "secret")
	h.mustRun("login", "a@x.com", "--password", "secret")

	if err := os.WriteFile(filepath.Join(h.configDir, session.DataFile), []byte("garbage that is long enough to hold a nonce"), 0600); err != nil {
		t.Fatalf("failed to corrupt session file: %v", err)
	}

	_, stderr, code := h.run("list")
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: tasklist login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}

	if out := h.mustRun("login", "a@x.com", "--password", "secret"); out != "logged in as a@x.com\n" {
		t.Errorf("unexpected login output %q", out)
	}
	h.mustRun("list")
}

func TestDispatcher_VerifyOnStart(t *testing.T) {
	h := newHarness(t)
	h.fake.AddUser("a@x.com", "secret")
	h.mustRun("login", "a@x.com", "--password", "secret")

	t.Setenv("TASKLIST_AUTH_VERIFY_ON_START", "true")
	h.mustRun("list")
	if n := h.fake.Calls("POST /api/auth/verify-token"); n != 1 {
		t.Errorf("expected one verification, got %d", n)
	}

	h.fake.SetVerifyInvalid(true)
	_, stderr, code := h.run("list")
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: tasklist login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_RedisSession(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("TASKLIST_SESSION_BACKEND", "redis")
	t.Setenv("TASKLIST_SESSION_REDIS_ADDR", mr.Addr())

	h := newHarness(t)
	h.fake.AddUser("a@x.com", "secret")
	h.mustRun("login", "a@x.com", "--password", "secret")

	if !mr.Exists(session.DefaultRedisPrefix + string(session.KindAccess)) {
		t.Error("expected access token in redis")
	}
	if _, err := os.Stat(filepath.Join(h.configDir, session.DataFile)); !os.IsNotExist(err) {
		t.Error("file backend should not be used")
	}
	if out := h.mustRun("whoami"); out != "a@x.com\n" {
		t.Errorf("unexpected whoami %q", out)
	}

	h.mustRun("logout")
	if mr.Exists(session.DefaultRedisPrefix + string(session.KindAccess)) {
		t.Error("expected access token removed from redis")
	}
}

func TestDispatcher_DebugLogsMetrics(t *testing.T) {
	h := newHarness(t)
	h.fake.AddUser("a@x.com", "secret")
	h.mustRun("login", "a@x.com", "--password", "secret")

	d := cli.NewDispatcher(commands.DefaultRegistry, cli.NewEnv)
	var stdout, stderr bytes.Buffer
	code := d.Run(context.Background(), []string{"list", "--debug", "--config", h.configDir, "--api-url", h.fake.BaseURL()}, &stdout, &stderr)
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "tasklist_api_requests_total") {
		t.Errorf("expected metrics summary in debug output, got %q", stderr.String())
	}
}

func TestSessionBackend(t *testing.T) {
	cfg := &config.Config{Dir: filepath.Join(t.TempDir(), "cfg")}

	cfg.Session.Backend = config.BackendMemory
	backend, cleanup, err := cli.SessionBackend(cfg)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	cleanup()
	if _, ok := backend.(*session.MemoryBackend); !ok {
		t.Errorf("expected *session.MemoryBackend, got %T", backend)
	}

	cfg.Session.Backend = config.BackendFile
	backend, cleanup, err = cli.SessionBackend(cfg)
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	cleanup()
	if _, ok := backend.(*session.FileBackend); !ok {
		t.Errorf("expected *session.FileBackend, got %T", backend)
	}
	if _, err := os.Stat(cfg.Dir); err != nil {
		t.Errorf("expected config dir to be created: %v", err)
	}

	cfg.Session.Backend = "etcd"
	if _, _, err := cli.SessionBackend(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestDispatcher_DegradedFailureLoggedOnce(t *testing.T) {
	h := newHarness(t)
	h.fake.AddUser("a@x.com", "secret")
	h.mustRun("login", "a@x.com", "--password", "secret")
	h.fake.Fail("GET /api/tasks/{$}", 503)

	d := cli.NewDispatcher(commands.DefaultRegistry, cli.NewEnv)
	var stdout, stderr bytes.Buffer
	code := d.Run(context.Background(), []string{"list", "--config", h.configDir, "--api-url", h.fake.BaseURL()}, &stdout, &stderr)
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr.String())
	}
	if stdout.String() != "no tasks found\n" {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
	if n := strings.Count(stderr.String(), "level="); n != 1 {
		t.Errorf("expected one log line, got %d: %q", n, stderr.String())
	}
	if !strings.Contains(stderr.String(), `msg="failed to fetch tasks"`) {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}
