package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}

// run executes streamctl with args, resetting global flag state first.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	verbose, quiet, jsonOut = false, false, false
	configPath, logLevel = "", ""
	createClusterSize, createForce, inputFile = 0, false, ""
	rootCmd.SetArgs(args)
	return captureOutput(t, rootCmd.Execute)
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "streamctl %s", strings.Join(args, " "))
	return out
}

func newFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.ck")
	mustRun(t, "create", path, "--cluster-size", "4")
	return path
}

func TestCreate(t *testing.T) {
	path := newFile(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	hdr, err := format.ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), hdr.ClusterSize)
	assert.Equal(t, uint32(0), hdr.ListingCount)

	_, err = run(t, "create", path)
	require.Error(t, err)
	mustRun(t, "create", path, "--force")
}

func TestEditCommands(t *testing.T) {
	path := newFile(t)

	assert.Equal(t, "0\n", mustRun(t, "add", path, "alpha"))
	assert.Equal(t, "1\n", mustRun(t, "add", path, "beta"))
	mustRun(t, "append", path, "0", "+omega")
	mustRun(t, "insert", path, "0", "first")

	assert.Equal(t, "first", mustRun(t, "cat", path, "0"))
	assert.Equal(t, "alpha+omega", mustRun(t, "cat", path, "1"))
	assert.Equal(t, "beta", mustRun(t, "cat", path, "2"))

	mustRun(t, "swap", path, "0", "2")
	assert.Equal(t, "beta", mustRun(t, "cat", path, "0"))
	mustRun(t, "clear", path, "1")
	assert.Equal(t, "", mustRun(t, "cat", path, "1"))
	mustRun(t, "rm", path, "1")
	assert.Equal(t, "first", mustRun(t, "cat", path, "1"))

	out := mustRun(t, "ls", path, "--json")
	var entries []streamEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(4), entries[0].Size)
	assert.Equal(t, uint64(5), entries[1].Size)
	assert.Equal(t, 2, entries[1].Clusters)

	mustRun(t, "verify", path)
}

func TestAdd_FromFile(t *testing.T) {
	path := newFile(t)
	src := filepath.Join(t.TempDir(), "blob.bin")
	blob := bytes.Repeat([]byte{0xAB, 0x00}, 50)
	require.NoError(t, os.WriteFile(src, blob, 0o644))

	mustRun(t, "add", path, "--file", src)
	assert.Equal(t, string(blob), mustRun(t, "cat", path, "0"))
}

func TestFailedEditLeavesFileUntouched(t *testing.T) {
	path := newFile(t)
	mustRun(t, "add", path, "alpha")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = run(t, "rm", path, "5")
	require.ErrorIs(t, err, types.ErrPrecondition)
	_, err = run(t, "insert", path, "9", "x")
	require.ErrorIs(t, err, types.ErrPrecondition)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no scratch files left behind")
}

func TestInfo(t *testing.T) {
	path := newFile(t)
	mustRun(t, "add", path, "0123456789")

	out := mustRun(t, "info", path, "--json")
	var info storageInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 4, info.ClusterSize)
	assert.Equal(t, 3, info.Clusters)
	assert.Equal(t, 1, info.Streams)
	assert.Equal(t, uint64(10), info.PayloadBytes)
	assert.Equal(t, int64(format.HeaderSize+format.ListingSize), info.MetadataLength)

	out = mustRun(t, "info", path)
	assert.Contains(t, out, "Streams: 1")
}

func TestVerify_ReportsCorruption(t *testing.T) {
	path := newFile(t)
	mustRun(t, "add", path, "0123456789")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	hdr, err := format.ParseHeader(data)
	require.NoError(t, err)
	format.PutI32(data, format.ClusterOffset(hdr, 0)+format.EnvelopeNextOffset, 0)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := run(t, "verify", path, "--json")
	require.ErrorIs(t, err, types.ErrCorrupt)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, false, result["valid"])
}

func TestConfigFile(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "streamctl.ini")
	require.NoError(t, os.WriteFile(conf, []byte("[storage]\ncluster_size = 8\n"), 0o644))
	path := filepath.Join(t.TempDir(), "data.ck")

	mustRun(t, "create", path, "--config", conf)
	out := mustRun(t, "info", path, "--json")
	var info storageInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 8, info.ClusterSize)
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	assert.Contains(t, out, "streamctl dev")
	assert.Contains(t, out, "storage format: v1")

	out = mustRun(t, "version", "--json")
	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, uint8(format.Version), info.FormatVersion)
	assert.Equal(t, format.MaxClusterSize, info.ClusterMax)
}
