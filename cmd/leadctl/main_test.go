package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"leadbot/internal/auth"
	"leadbot/internal/reporting"
	"leadbot/internal/syncer"
	"leadbot/internal/tracker"
)

func writeSheet(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.Save(path))
	return path
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("LEADBOT_AUTH_JWT_SECRET", "secret")
	t.Setenv("LEADBOT_APP_TIMEZONE", "UTC")
	t.Setenv("LEADBOT_STORE_PATH", filepath.Join(dir, "leadbot.db"))
	t.Setenv("LEADBOT_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_Registered(t *testing.T) {
	want := []string{"sync", "import", "enrich", "token", "migrate", "report"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Short)
	}
	require.NotNil(t, importCmd.Flags().Lookup("file"))
	require.NotNil(t, syncCmd.Flags().Lookup("day"))
	require.NotNil(t, enrichCmd.Flags().Lookup("out"))
}

func TestToken(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "token", "--user", "u-1", "--role", "manager")
	require.NoError(t, err)

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal([]byte(out), &pair))
	assert.NotEmpty(t, pair.AccessToken)

	m, err := auth.NewManager(cfg.Auth)
	require.NoError(t, err)
	claims, err := m.Verify(pair.AccessToken, auth.TokenTypeAccess, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "manager", claims.Role)

	_, err = run(t, "token", "--user", "u-1", "--role", "owner")
	assert.Error(t, err)
}

func TestSync_RejectsUnknownKind(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "sync", "fax")
	assert.Error(t, err)
}

func TestImportReportEnrich(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, "migrate")
	require.NoError(t, err)

	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	date := now.Format("1/2/2006")

	callsPath := writeSheet(t, dir, "calls.xlsx", [][]string{
		{"Direction", "Type", "Phone", "Name", "Date", "Time", "Action", "Result", "Reason", "Duration"},
		{"Outbound", "Voice", "(555) 123-4567", "Jane", date, "12:00 AM", "Phone Call", "Call connected", "", "0:05:00"},
		{"Outbound", "Voice", "(555) 765-4321", "Bob", date, "12:01 AM", "Phone Call", "Voicemail", "", "0:00:40"},
	})
	out, err := run(t, "import", "--file", callsPath, "--kind", "calls", "--day", "")
	require.NoError(t, err)
	var res syncer.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Calls)
	assert.Equal(t, 2, res.Calls.NewCount)
	assert.Equal(t, today, res.Day)

	out, err = run(t, "import", "--file", callsPath, "--kind", "calls")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Zero(t, res.Calls.NewCount)

	out, err = run(t, "report", "--from", today, "--to", today)
	require.NoError(t, err)
	var rep reporting.ActivitySummary
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.Totals.Calls)
	assert.Equal(t, 1, rep.Totals.Voicemails)
	assert.Equal(t, 1, rep.Totals.LongCalls)

	leadsPath := writeSheet(t, dir, "leads.xlsx", [][]string{
		{"Name", "Phone", "Source"},
		{"Jane", "555-123-4567", "Referral"},
		{"Bob", "5557654321", "Web"},
		{"New", "5550001111", "Web"},
	})
	outPath := filepath.Join(dir, "enriched.xlsx")
	_, err = run(t, "enrich", "--file", leadsPath, "--out", outPath)
	require.NoError(t, err)

	rows, err := tracker.ReadRows(outPath, tracker.SheetOptions{Name: tracker.EnrichedSheet})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestImport_RejectsUnknownKind(t *testing.T) {
	dir := setupEnv(t)
	path := writeSheet(t, dir, "x.xlsx", [][]string{{"Direction"}})
	_, err := run(t, "import", "--file", path, "--kind", "fax")
	assert.Error(t, err)
}
