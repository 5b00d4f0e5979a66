package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/lookup"
)

const fixtureDir = "../../internal/catalog/testdata/search"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateFixture(t *testing.T) {
	out, err := run(t, "validate", fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 2 files, 60 entries")
}

func TestValidateReportsViolations(t *testing.T) {
	dir := t.TempDir()
	bad := "var searchData=\n[\n  ['x',['X',['../a.html',1,'']]]\n];\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "all_0.js"), []byte(bad), 0o644))

	out, err := run(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "violations")
	assert.Contains(t, out, "all_0.js")
}

func TestQuery(t *testing.T) {
	out, err := run(t, "query", fixtureDir, "custom", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "custom_20finalizers_51")
	assert.Contains(t, out, "2 of 7 entries")

	out, err = run(t, "query", fixtureDir, "call", "--json", "--limit", "0")
	require.NoError(t, err)
	var res lookup.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 9, res.Total)
	assert.Len(t, res.Hits, 9)

	_, err = run(t, "query", fixtureDir, "call", "--mode", "regex")
	assert.Error(t, err)
}

func TestSnapshotStatsAndRender(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "out", "mimicpp.dsx")

	out, err := run(t, "snapshot", fixtureDir, snap, "--codec", "lz4")
	require.NoError(t, err)
	assert.Contains(t, out, "2 files, 60 entries")

	out, err = run(t, "stats", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "classes")
	assert.Contains(t, out, "76")

	rendered := filepath.Join(dir, "rendered")
	_, err = run(t, "render", snap, rendered)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(fixtureDir, "all_4.js"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(rendered, "all_4.js"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestEncodeDecode(t *testing.T) {
	out, err := run(t, "encode", "Call Conventions")
	require.NoError(t, err)
	assert.Equal(t, "call_20conventions\n", out)

	out, err = run(t, "decode", "call_20conventions")
	require.NoError(t, err)
	assert.Equal(t, "call conventions\n", out)

	out, err = run(t, "decode", "--id", "call_20conventions_0")
	require.NoError(t, err)
	assert.Equal(t, "call conventions\n", out)

	_, err = run(t, "decode", "bad_zz")
	assert.Error(t, err)
}
