package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"delta-spread/internal/models"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		"info":   zerolog.InfoLevel,
		"warn":   zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
		"":       zerolog.InfoLevel,
		"chatty": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	if got := FromContext(context.Background()); got.GetLevel() != zerolog.Disabled {
		t.Errorf("expected Nop logger without context value")
	}

	ctx := WithLogger(context.Background(), WithOperation(WithSymbol(logger, "SPY"), "analyze"))
	ctxLogger := FromContext(ctx)
	ctxLogger.Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry["symbol"] != "SPY" || entry["operation"] != "analyze" {
		t.Errorf("entry = %v", entry)
	}
}

func TestLogMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := models.Strategy{Underlier: models.Underlier{Symbol: "QQQ"}, Legs: make([]models.OptionLeg, 2)}
	m := models.StrategyMetrics{
		NetDebitCredit: 150,
		MaxProfit:      models.Bound{Value: 150},
		MaxLoss:        models.Bound{Unbounded: true},
		Breakevens:     []float64{101.5},
	}
	LogMetrics(logger, s, m)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if entry["event"] != "metrics" || entry["symbol"] != "QQQ" || entry["legs"] != float64(2) {
		t.Errorf("entry = %v", entry)
	}
	if entry["max_loss_unbounded"] != true {
		t.Errorf("max_loss_unbounded = %v", entry["max_loss_unbounded"])
	}
}

func TestLogTradeAndQuoteFetch(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	LogTrade(logger, "saved", "abc", "condor", 4)
	if !bytes.Contains(buf.Bytes(), []byte(`"trade_id":"abc"`)) {
		t.Errorf("missing trade_id in %s", buf.String())
	}

	buf.Reset()
	LogQuoteFetch(logger, "SPY", 2, 0, errors.New("boom"))
	if !bytes.Contains(buf.Bytes(), []byte(`"error":"boom"`)) {
		t.Errorf("missing error in %s", buf.String())
	}
}

func TestNewLoggerWithConfigFileOnly(t *testing.T) {
	cfg := LogConfig{
		Level:    "warn",
		File:     true,
		FilePath: filepath.Join(t.TempDir(), "logs", "test.log"),
		MaxSize:  1,
	}
	logger := NewLoggerWithConfig(cfg)
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}

	if got := NewLoggerWithConfig(LogConfig{}); got.GetLevel() != zerolog.Disabled {
		t.Errorf("expected Nop logger with no writers")
	}
}
