package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"ratedeck/db/storage"
	"ratedeck/decision/comparison"
	rderrors "ratedeck/pkg/errors"
)

func writeDeck(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	require.NoError(t, app.Run(append([]string{"ratedeck", "--log-level", "error"}, args...)))
	return out.String()
}

func TestCompareCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	p1 := writeDeck(t, dir, "carrier-a.csv", "dialCode,destName,rate\n44,UK,0.18\n33,France,0.1\n")
	p2 := writeDeck(t, dir, "carrier-b.csv", "dialCode,destName,rate\n44,UK,0.198\n49,Germany,0.05\n")

	out := runApp(t, "compare", "--format", "json", p1, p2)

	var reports comparison.Reports
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports.PricingReport.HigherRatesForFile2, 1)
	assert.InDelta(t, 10, reports.PricingReport.HigherRatesForFile2[0].PercentageDifference, 1e-9)
	assert.Len(t, reports.PricingReport.NonMatchingCodes, 2)
	assert.Equal(t, "carrier-a.csv", reports.CodeReport.File1.FileName)
}

func TestCompareCommand_TableAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	p1 := writeDeck(t, dir, "a.csv", "dialCode,destName,rate\n441,UK,0.2\n442,UK,0.2\n")
	p2 := writeDeck(t, dir, "b.csv", "dialCode,destName,rate\n441,UK,0.1\n442,UK,0.1\n")

	table := runApp(t, "compare", p1, p2)
	assert.Contains(t, table, "CODE COVERAGE")
	assert.Contains(t, table, "HIGHER IN a.csv (1)")
	assert.Contains(t, table, "441, 442")

	md := runApp(t, "compare", "-f", "markdown", p1, p2)
	assert.Contains(t, md, "### Higher in a.csv (1)")
	assert.Contains(t, md, "| 441, 442 | UK | 0.20000 | 0.10000 | 100.00 |")
}

func TestCompareCommand_Archive(t *testing.T) {
	dir := t.TempDir()
	p1 := writeDeck(t, dir, "a.csv", "dialCode,destName,rate\n44,UK,0.2\n")
	p2 := writeDeck(t, dir, "b.csv", "dialCode,destName,rate\n44,UK,0.2\n")

	out := runApp(t, "--store", "memory", "compare", "--archive", "--format", "json", p1, p2)
	assert.Contains(t, out, "sameRates")
}

func TestAdjustCommand(t *testing.T) {
	dir := t.TempDir()
	deck := writeDeck(t, dir, "deck.csv", "dialCode,destName,rate\n44,UK,0.1\n33,France,0.2\n")
	rules := writeDeck(t, dir, "rules.yaml", `rules:
  - name: uk-markup
    direction: increase
    type: percentage
    value: 10
    destinations: [UK]
`)
	outPath := filepath.Join(dir, "adjusted.csv")

	runApp(t, "adjust", "--rules", rules, "--output", outPath, deck)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "dialCode,destName,rate\n44,UK,0.11\n33,France,0.2\n", string(data))
}

func TestSaveDeck(t *testing.T) {
	records := []comparison.StandardizedRecord{{DialCode: "44", DestName: "UK", Rate: 0.11}}

	t.Run("writes and closes the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, saveDeck(path, records))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "dialCode,destName,rate\n44,UK,0.11\n", string(data))
	})

	t.Run("missing directory", func(t *testing.T) {
		err := saveDeck(filepath.Join(t.TempDir(), "nope", "out.csv"), records)
		assert.Error(t, err)
	})

	t.Run("device out of space", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("/dev/full not available")
		}
		assert.Error(t, saveDeck("/dev/full", records))
	})
}

func TestCompareUSCommand(t *testing.T) {
	dir := t.TempDir()
	header := "npanxx,state,interRate,intraRate,ijRate\n"
	p1 := writeDeck(t, dir, "us-a.csv", header+"201200,NJ,0.01,0.02,0.03\n")
	p2 := writeDeck(t, dir, "us-b.csv", header+"201200,NJ,0.02,0.02,0.01\n")

	out := runApp(t, "compare-us", p1, p2)
	assert.Contains(t, out, "== INTERSTATE ==")
	assert.Contains(t, out, "== INDETERMINATE ==")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{cli.Exit("bad", ExitParseError), ExitParseError},
		{fmt.Errorf("load: %w", rderrors.NewInvalidRateError("a.csv", 2, "x")), ExitParseError},
		{rderrors.NewInvalidInputError(), ExitCompareError},
		{fmt.Errorf("boom"), ExitFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}

func TestPrinter_Runs(t *testing.T) {
	t.Parallel()

	runs := []storage.RunSummary{{FileName1: "a.csv", FileName2: "b.csv", SameRates: 3}}

	var buf bytes.Buffer
	require.NoError(t, newPrinter(&buf, FormatTable).Runs(runs))
	assert.Contains(t, buf.String(), "a.csv vs b.csv")

	buf.Reset()
	require.NoError(t, newPrinter(&buf, FormatTable).Runs(nil))
	assert.Equal(t, "No archived runs\n", buf.String())

	buf.Reset()
	require.NoError(t, newPrinter(&buf, FormatMarkdown).Runs(runs))
	assert.True(t, strings.HasPrefix(buf.String(), "| Run |"))
}

func TestLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{1, 2}, limit([]int{1, 2, 3}, 2))
	assert.Equal(t, []int{1, 2, 3}, limit([]int{1, 2, 3}, 0))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
