package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	config  string
	envFile string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "cachectl.yaml")
	content := fmt.Sprintf("cache:\n  flushInterval: 1h\n  persist: true\nstore:\n  driver: sqlite\n  path: %s\n",
		filepath.Join(dir, "cache.db"))
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))
	return &harness{t: t, config: cfg, envFile: filepath.Join(dir, "missing.env")}
}

func (h *harness) run(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", h.config, "--env-file", h.envFile, "--log-level", "none", "--log-format", "json"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	out, err := h.run(args...)
	require.NoError(h.t, err, strings.Join(args, " "))
	return out
}

func TestPutGetAcrossInvocations(t *testing.T) {
	h := newHarness(t)
	h.mustRun("put", "users", "1", `{"name":"pesho"}`)
	h.mustRun("put", "users", "2", "plain text")

	out := h.mustRun("get", "users", "1")
	assert.Contains(t, out, `"name": "pesho"`)
	out = h.mustRun("get", "users", "2")
	assert.Equal(t, "\"plain text\"\n", out)

	out = h.mustRun("layers")
	assert.Contains(t, out, "users\t2\t1h0m0s\ttrue")

	h.mustRun("rm", "users", "1")
	_, err := h.run("get", "users", "1")
	assert.ErrorContains(t, err, "not found")

	h.mustRun("rm", "users")
	_, err = h.run("get", "users", "2")
	assert.ErrorContains(t, err, `layer "users" not found`)
}

func TestFlush(t *testing.T) {
	h := newHarness(t)
	h.mustRun("put", "a", "k", "1")
	h.mustRun("put", "b", "k", "2")

	h.mustRun("flush")
	out := h.mustRun("layers")
	assert.Contains(t, out, "a\t0\t")
	assert.Contains(t, out, "b\t0\t")

	h.mustRun("flush", "--force")
	out = h.mustRun("layers")
	assert.Equal(t, "Layer\tItems\tFlush Interval\tPersist\tCreated\n", out)
}

func TestFetchCommand(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "cachectl/"+Version, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	h := newHarness(t)
	out := h.mustRun("fetch", "remote", srv.URL)
	assert.Contains(t, out, `"ok": true`)
	h.mustRun("fetch", "remote", srv.URL)
	assert.EqualValues(t, 1, hits.Load())

	h.mustRun("fetch", "remote", srv.URL, "--no-cache")
	assert.EqualValues(t, 2, hits.Load())
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("--driver", "etcd", "layers")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(42), parseValue("42"))
	assert.Equal(t, map[string]any{"a": true}, parseValue(`{"a":true}`))
	assert.Equal(t, "hello world", parseValue("hello world"))
}
