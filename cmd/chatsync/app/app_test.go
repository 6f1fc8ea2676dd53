package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tbourn/go-chat-sync/internal/config"
	"github.com/tbourn/go-chat-sync/internal/manifest"
)

const testManifest = `
terms:
  - id: 1
    content: Be kind.
chats:
  - id: -1001
    type: supergroup
    title: Example
    permissions:
      - user_id: 42
      - user_id: 7
`

func testConfig(dir string) config.Config {
	return config.Config{
		GinMode:  "test",
		LogLevel: "error",
		DB: config.DBConfig{
			Driver: "sqlite",
			Path:   filepath.Join(dir, "chatsync.db"),
		},
		Lock: config.LockConfig{
			Backend: "local",
			TTL:     time.Second,
			Retry:   5 * time.Millisecond,
		},
		ApplyConcurrency: 2,
	}
}

func newTestApp(cfg config.Config) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	a := New("test")
	a.out = &out
	a.loadConfig = func() (config.Config, error) { return cfg, nil }
	return a, &out
}

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionFlag(t *testing.T) {
	a, out := newTestApp(config.Config{})
	if err := a.Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := out.String(); got != "chatsync test\n" {
		t.Fatalf("unexpected version output %q", got)
	}
}

func TestConfigErrorAbortsCommand(t *testing.T) {
	a, _ := newTestApp(config.Config{})
	a.loadConfig = func() (config.Config, error) { return config.Config{}, errors.New("PORT must not be empty") }

	err := a.Execute(context.Background(), []string{"migrate"})
	if err == nil || !strings.Contains(err.Error(), "config: PORT must not be empty") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestMigrate_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	a, _ := newTestApp(cfg)

	if err := a.Execute(context.Background(), []string{"migrate"}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(cfg.DB.Path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestApply_RequiresFile(t *testing.T) {
	a, _ := newTestApp(testConfig(t.TempDir()))
	err := a.Execute(context.Background(), []string{"apply"})
	if err == nil || !strings.Contains(err.Error(), "file") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestApply_WritesReportAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)
	a, out := newTestApp(testConfig(dir))

	if err := a.Execute(context.Background(), []string{"apply", "-f", path}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	var rep manifest.Report
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out.String())
	}
	if rep.Terms != 1 || len(rep.Chats) != 1 || len(rep.Chats[0].Permissions.Created) != 2 {
		t.Fatalf("unexpected first report: %+v", rep)
	}

	out.Reset()
	if err := a.Execute(context.Background(), []string{"apply", "--file", path, "--concurrency", "1"}); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	rep = manifest.Report{}
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("second report is not JSON: %v", err)
	}
	if cs := rep.Chats[0].Permissions; len(cs.Created) != 0 || len(cs.Deleted) != 0 {
		t.Fatalf("second apply must not create or delete: %+v", cs)
	}
}

func TestApply_StdoutCarriesOnlyTheReport(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = stdout })

	a := New("test")
	a.loadConfig = func() (config.Config, error) { return testConfig(dir), nil }
	runErr := a.Execute(context.Background(), []string{"apply", "-f", path})
	_ = w.Close()
	os.Stdout = stdout

	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if runErr != nil {
		t.Fatalf("apply: %v", runErr)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	var rep manifest.Report
	if err := dec.Decode(&rep); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, raw)
	}
	if dec.More() {
		t.Fatalf("unexpected output after the report:\n%s", raw)
	}
	if rep.Terms != 1 || len(rep.Chats) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestApply_RedisLockBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Lock.Backend = "redis"
	cfg.Lock.RedisAddr = mr.Addr()
	cfg.Lock.Prefix = "test:lock"
	a, out := newTestApp(cfg)

	if err := a.Execute(context.Background(), []string{"apply", "-f", writeManifest(t, dir)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(out.String(), `"chat_id": -1001`) {
		t.Fatalf("unexpected report: %s", out.String())
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("locks must be released, still held: %v", keys)
	}
}

func TestApply_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Lock.Backend = "redis"
	cfg.Lock.RedisAddr = addr
	a, _ := newTestApp(cfg)

	err := a.Execute(context.Background(), []string{"apply", "-f", writeManifest(t, dir)})
	if err == nil || !strings.Contains(err.Error(), "redis lock backend") {
		t.Fatalf("expected redis error, got %v", err)
	}
}
