package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbdrevv/email-filter-utility/internal/api"
	"github.com/hbdrevv/email-filter-utility/internal/config"
	"github.com/hbdrevv/email-filter-utility/internal/service/filtering"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLIWithStderr(t, args...)
	return stdout, err
}

func runCLIWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestFilterCommand(t *testing.T) {
	dir := t.TempDir()
	client := writeFile(t, dir, "clients.csv", "name;Email Address\nAnn;x@y.com\nBob;Z@Y.com\nCid;\n")
	supp := writeFile(t, dir, "supp.csv", "email\n X@Y.COM \n")
	out := filepath.Join(dir, "out", "kept.csv")
	removed := filepath.Join(dir, "out", "removed.csv")

	stdout, err := runCLI(t, "filter",
		"--config", filepath.Join(dir, "absent.yaml"),
		"--client", client,
		"--suppression", supp,
		"--out", out,
		"--removed", removed,
		"--drop-invalid",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "- Rows before filter: 3")
	assert.Contains(t, stdout, "- Kept (ready to upload): 1")
	assert.Contains(t, stdout, "Filtered list: "+out+" (1 rows)")

	assert.Equal(t, [][]string{{"name", "Email Address"}, {"Bob", "Z@Y.com"}}, readCSV(t, out))
	assert.Equal(t, [][]string{
		{"Reason", "name", "Email Address"},
		{"suppression_match", "Ann", "x@y.com"},
		{"empty_or_invalid_email", "Cid", ""},
	}, readCSV(t, removed))
}

func TestFilterCommandUsesConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "filter:\n  collapse_gmail_plus: true\n")
	client := writeFile(t, dir, "clients.csv", "email\njohn+news@gmail.com\njane@gmail.com\n")
	supp := writeFile(t, dir, "supp.csv", "email\njohn@gmail.com\n")
	out := filepath.Join(dir, "kept.csv")

	stdout, err := runCLI(t, "filter", "--config", cfgPath,
		"--client", client, "--suppression", supp, "--out", out, "--no-removed")
	require.NoError(t, err)

	assert.Contains(t, stdout, "plus=ON")
	assert.Equal(t, [][]string{{"email"}, {"jane@gmail.com"}}, readCSV(t, out))
	assert.NoFileExists(t, config.Default().Output.RemovedName)
}

func TestFilterCommandSpinnerFollowsStderr(t *testing.T) {
	dir := t.TempDir()
	client := writeFile(t, dir, "clients.csv", "email\na@b.com\n")
	supp := writeFile(t, dir, "supp.csv", "email\nc@d.com\n")

	stdout, stderr, err := runCLIWithStderr(t, "filter", "--config", filepath.Join(dir, "absent.yaml"),
		"--client", client, "--suppression", supp, "--out", filepath.Join(dir, "kept.csv"), "--no-removed")
	require.NoError(t, err)

	// Not a terminal, so the spinner stays silent instead of writing to the real stderr.
	assert.NotContains(t, stderr, "Loading lists")
	assert.NotContains(t, stdout, "Loading lists")
}

func TestFilterCommandErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	client := writeFile(t, dir, "clients.csv", "email\na@b.com\n")
	noEmail := writeFile(t, dir, "ids.csv", "id,name\n1,Ann\n")
	cfg := filepath.Join(dir, "absent.yaml")

	_, err := runCLI(t, "filter", "--config", cfg, "--client", client)
	assert.ErrorIs(t, err, filtering.ErrMissingInput)

	_, err = runCLI(t, "filter", "--config", cfg, "--client", client, "--suppression", noEmail,
		"--out", filepath.Join(dir, "o.csv"))
	assert.ErrorIs(t, err, table.ErrSchema)
	assert.Contains(t, cliMessage(err), "Could not detect the email column in ids.csv")

	_, err = runCLI(t, "filter", "--config", cfg, "--client", client, "--suppression-source", "postgres")
	assert.ErrorIs(t, err, filtering.ErrNoDatabase)

	_, err = runCLI(t, "filter", "--config", cfg, "--client", client, "--suppression-source", "ftp")
	assert.ErrorContains(t, err, "unknown --suppression-source")
}

func TestCLIMessage(t *testing.T) {
	assert.Equal(t, "Please upload both files.", cliMessage(filtering.ErrMissingInput))
	assert.Equal(t, "open x.csv: no such file", cliMessage(errors.New("open x.csv: no such file")))
}

func TestBuildServer(t *testing.T) {
	t.Setenv("SERVER_HOST", "")
	cfg := config.Default()
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()

	srv, cleanup, err := buildServer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	addr, err := srv.Listen()
	require.NoError(t, err)
	go srv.Serve()

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status api.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not_configured", status.Checks["database"].Status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestBuildServerUnknownStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "ftp"
	_, _, err := buildServer(context.Background(), cfg)
	assert.Error(t, err)
}
