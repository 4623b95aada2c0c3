package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/pkg/config"
	"pricecheck/pkg/device/devicetest"
	"pricecheck/pkg/model"
	"pricecheck/pkg/scan"
	"pricecheck/pkg/scope"
)

func deviceServer(t *testing.T, fake *devicetest.Fake, dir []model.SiteDirectoryEntry) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/asset-mgmt/api/site", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dir)
	})
	mux.HandleFunc("/session-manager/stations/dashboard/acn/", func(w http.ResponseWriter, r *http.Request) {
		acn := strings.TrimPrefix(r.URL.Path, "/session-manager/stations/dashboard/acn/")
		stations, err := fake.ListStations(r.Context(), acn, r.URL.Query().Get("acc"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		var parts []string
		for _, s := range stations {
			b, _ := json.Marshal(s)
			k, _ := json.Marshal(s.PFID)
			parts = append(parts, string(k)+":"+string(b))
		}
		_, _ = w.Write([]byte("{" + strings.Join(parts, ",") + "}"))
	})
	mux.HandleFunc("/edge-device-manager/ocppCommands/get_configuration/", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Key []string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		pfid := strings.TrimPrefix(r.URL.Path, "/edge-device-manager/ocppCommands/get_configuration/")
		reply, err := fake.ReadConfig(r.Context(), pfid, body.Key[0])
		if err != nil {
			_, _ = w.Write([]byte(`{"error":"` + err.Error() + `"}`))
			return
		}
		_, _ = w.Write(reply.Body)
	})
	mux.HandleFunc("/edge-device-manager/ocppCommands/change_configuration/", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Key, Value string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		pfid := strings.TrimPrefix(r.URL.Path, "/edge-device-manager/ocppCommands/change_configuration/")
		reply, err := fake.WriteConfig(r.Context(), pfid, body.Key, body.Value)
		if err != nil {
			_, _ = w.Write([]byte(`{"error":"` + err.Error() + `"}`))
			return
		}
		_, _ = w.Write(reply.Body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func env(t *testing.T, baseURL string) string {
	t.Helper()
	chdirT(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cache := t.TempDir()
	t.Setenv("PRICECHECK_BASE_URL", baseURL)
	t.Setenv("PRICECHECK_TOKEN", "test-token")
	t.Setenv("PRICECHECK_CACHE_DIR", cache)
	t.Setenv("PRICECHECK_LOG_LEVEL", "error")
	return cache
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fixture() *devicetest.Fake {
	fake := devicetest.New()
	fake.AddStation("0051", "09", "0051-09-01-01", "LiteON", model.Schedule{model.Entry(0, 0.5), model.Entry(12, 0.5)})
	fake.AddStation("0051", "09", "0051-09-01-02", "LiteON", model.Schedule{model.Entry(0, 0.3), model.Entry(12, 0.5)})
	return fake
}

func TestScanAndRemediate(t *testing.T) {
	fake := fixture()
	srv := deviceServer(t, fake, nil)
	cache := env(t, srv.URL)

	out, err := run(t, "", "--yes", "0051", "09")
	require.NoError(t, err)
	assert.Contains(t, out, "Deviating (1)")
	assert.Contains(t, out, "t=0:f=0.3")
	assert.Contains(t, out, "scope removed from the ledger")

	writes := fake.WritesFor(scan.KeySchedule)
	require.Len(t, writes, 1)
	assert.Equal(t, "0051-09-01-02", writes[0].PFID)
	assert.Equal(t, `[{"t":0,"f":0.5},{"t":12,"f":0.5}]`, writes[0].Value)

	var doc model.LedgerDocument
	b, err := os.ReadFile(filepath.Join(cache, config.LedgerFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Empty(t, doc.Sites)

	out, err = run(t, "", "history", "0051-09-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted")
}

func TestRejectedThenRetry(t *testing.T) {
	fake := fixture()
	fake.WriteStatus["0051-09-01-02"] = "Rejected"
	fake.WriteReason["0051-09-01-02"] = "busy"
	srv := deviceServer(t, fake, nil)
	env(t, srv.URL)

	out, err := run(t, "y\n", "0051-09")
	require.NoError(t, err)
	assert.Contains(t, out, "--retry 0051-09")

	out, err = run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "0051-09")

	delete(fake.WriteStatus, "0051-09-01-02")
	out, err = run(t, "1\ny\n", "--retry")
	require.NoError(t, err)
	assert.Contains(t, out, "busy")
	assert.Contains(t, out, "scope removed from the ledger")

	out, err = run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No scopes with outstanding updates")
}

func TestDeclineLeavesLedgerPending(t *testing.T) {
	fake := fixture()
	srv := deviceServer(t, fake, nil)
	env(t, srv.URL)

	out, err := run(t, "n\n", "0051", "09")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipped")
	assert.Empty(t, fake.WritesFor(scan.KeySchedule))

	out, err = run(t, "", "--yes", "--retry", "0051", "09")
	require.NoError(t, err)
	assert.Contains(t, out, "scope removed from the ledger")
	assert.Len(t, fake.WritesFor(scan.KeySchedule), 1)
}

func TestLevel1Sweep(t *testing.T) {
	fake := fixture()
	fake.AddStation("0051", "12", "0051-12-07-01", "LiteON", model.Schedule{model.Entry(0, 0.5)})
	dir := []model.SiteDirectoryEntry{
		{ID: "1", Level1: "0051", Level2: "12"},
		{ID: "2", Level1: "0051", Level2: "09"},
	}
	srv := deviceServer(t, fake, dir)
	cache := env(t, srv.URL)

	out, err := run(t, "", "--yes", "0051")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned:       3")
	assert.Equal(t, []string{"0051-09", "0051-12"}, fake.Lists)
	_, err = os.Stat(filepath.Join(cache, config.SitesCacheFile))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cache, config.ProgressFile))
	assert.True(t, os.IsNotExist(err), "checkpoint removed after a completed sweep")
}

func TestMissingScope(t *testing.T) {
	_, err := run(t, "")
	assert.ErrorIs(t, err, scope.ErrInvalidScope)
	assert.NotEmpty(t, hint(err))
}

func TestListingFailureHasHint(t *testing.T) {
	fake := fixture()
	fake.ListErr["0051-09"] = errors.New("http 502")
	srv := deviceServer(t, fake, nil)
	env(t, srv.URL)

	_, err := run(t, "", "--yes", "0051-09")
	require.Error(t, err)
	assert.Contains(t, hint(err), "run the same command again")
	assert.NotEmpty(t, hint(errors.New("open ledger backend: boom")))
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("yes\nno\n"), &out, false)
	assert.True(t, p.Confirm(context.Background(), "go?"))
	assert.False(t, p.Confirm(context.Background(), "go?"))
	assert.False(t, p.Confirm(context.Background(), "go?"), "EOF is no")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := NewPrompter(blockingReader{}, &out, false)
	assert.False(t, blocked.Confirm(ctx, "go?"))
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }
