package logger

import (
	"fmt"

	"github.com/lotshot/lotshot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFromConfig builds the process logger: production JSON with ISO-8601
// timestamps, tagged with the service identity so reconciliation runs
// can be traced across instances. Sampling is off; runs are low-volume
// and every per-entry submission line matters for billing audits.
func NewFromConfig(appCfg config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if appCfg.Logger.Level != "" {
		if err := level.UnmarshalText([]byte(appCfg.Logger.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", appCfg.Logger.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "json"
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build(zap.Fields(
		zap.String("service", appCfg.AppName),
		zap.String("version", appCfg.AppVersion),
	))
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)
	return log, nil
}
