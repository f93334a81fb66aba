package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/presenter"
)

// runCLI executes the root command with args against an isolated home
// directory and returns what was written to stdout.
func runCLI(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(home, "config.toml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q, want %q", v["version"], Version)
	}
}

func TestAnalyzeBullCallSpread(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "analyze", "--json",
		"--spot", "450", "--vol", "0.2",
		"-l", "buy:1:call:450@10", "-l", "sell:1:call:460@5")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var res struct {
		Metrics models.StrategyMetrics `json:"metrics"`
		Legs    []models.PricedLeg     `json:"legs"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Legs) != 2 {
		t.Fatalf("expected 2 priced legs, got %d", len(res.Legs))
	}
	if res.Metrics.NetDebitCredit >= 0 {
		t.Errorf("expected a net debit, got %v", res.Metrics.NetDebitCredit)
	}
	if res.Metrics.MaxProfit.Unbounded || res.Metrics.MaxLoss.Unbounded {
		t.Errorf("vertical spread should be bounded: %+v / %+v", res.Metrics.MaxProfit, res.Metrics.MaxLoss)
	}
	if len(res.Metrics.Breakevens) != 1 || math.Abs(res.Metrics.Breakevens[0]-455) > 0.05 {
		t.Errorf("breakevens = %v, want [455]", res.Metrics.Breakevens)
	}
	if p := res.Metrics.ProbabilityOfProfit; p <= 0 || p >= 1 {
		t.Errorf("probability of profit out of range: %v", p)
	}
}

func TestAnalyzeRequiresOneSource(t *testing.T) {
	home := t.TempDir()

	_, err := runCLI(t, home, "analyze", "--vol", "0.2")
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error with no strategy, got %v", err)
	}

	_, err = runCLI(t, home, "analyze", "--vol", "0.2", "--template", "straddle", "-l", "buy:1:call:450")
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error with two sources, got %v", err)
	}
}

func TestStrategyTemplates(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "strategy", "templates")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	for _, name := range []string{"iron_condor", "straddle"} {
		if !strings.Contains(out, name) {
			t.Errorf("template list missing %s:\n%s", name, out)
		}
	}
}

func TestPayoffCSV(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "payoff", "--csv", "-", "--samples", "11",
		"--spot", "100", "--vol", "0.25", "--low", "90", "--high", "110",
		"-l", "buy:1:put:100@3")
	if err != nil {
		t.Fatalf("payoff: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "price,pnl" {
		t.Fatalf("header = %q", lines[0])
	}
	if len(lines) != 12 {
		t.Errorf("expected 11 samples, got %d", len(lines)-1)
	}
}

func TestTradesLifecycle(t *testing.T) {
	home := t.TempDir()

	if _, err := runCLI(t, home, "trades", "save", "spy call spread",
		"--spot", "450", "-l", "buy:1:call:450@10", "-l", "sell:1:call:460@5"); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err := runCLI(t, home, "trades", "save", "spy call spread", "-l", "buy:1:call:450")
	if !errors.Is(err, apperrors.ErrDuplicateTradeName) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}

	out, err := runCLI(t, home, "trades", "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []struct {
		Name     string `json:"name"`
		LegCount int    `json:"leg_count"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "spy call spread" || list[0].LegCount != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if _, err := runCLI(t, home, "trades", "edit", "spy call spread",
		"--strike", "2=465", "--add-leg", "sell:1:put:440"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	out, err = runCLI(t, home, "trades", "show", "spy call spread", "--json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var shown struct {
		Strategy models.Strategy `json:"strategy"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	legs := shown.Strategy.Legs
	if len(legs) != 3 {
		t.Fatalf("expected 3 legs after edit, got %d", len(legs))
	}
	if legs[1].Contract.Strike != 465 || legs[1].EntryPrice != nil {
		t.Errorf("edited leg = %+v, want strike 465 without entry", legs[1])
	}
	if legs[2].Contract.Kind != models.OptionKindPut {
		t.Errorf("added leg kind = %s", legs[2].Contract.Kind)
	}

	if _, err := runCLI(t, home, "trades", "delete", "spy call spread"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = runCLI(t, home, "trades", "show", "spy call spread")
	if !errors.Is(err, apperrors.ErrTradeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestParseLegAssignment(t *testing.T) {
	i, v, err := parseLegAssignment("2=455.5")
	if err != nil || i != 1 || v != "455.5" {
		t.Errorf("got %d %q %v", i, v, err)
	}
	for _, bad := range []string{"455", "0=100", "x=1"} {
		if _, _, err := parseLegAssignment(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRenderChart(t *testing.T) {
	cd := presenter.ChartData{
		Prices:       []float64{90, 95, 100, 105, 110},
		PnLs:         []float64{-5, -5, -5, 0, 5},
		XMin:         90,
		XMax:         110,
		YMin:         -5,
		YMax:         5,
		StrikeLines:  []float64{100},
		CurrentPrice: 105,
	}
	lines := RenderChart(cd, 5)
	if len(lines) != 6 {
		t.Fatalf("expected 5 rows plus axis, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "*") {
		t.Errorf("top row should hold the max sample: %q", lines[0])
	}
	if !strings.Contains(lines[4], "***") {
		t.Errorf("bottom row should hold the flat loss: %q", lines[4])
	}
	if !strings.Contains(lines[5], "90.00") || !strings.Contains(lines[5], "110.00") {
		t.Errorf("axis line = %q", lines[5])
	}

	if got := RenderChart(presenter.ChartData{}, 5); len(got) != 1 {
		t.Errorf("empty chart = %v", got)
	}
}
