package backtest

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// WriteResult writes the run's metrics and trades as a YAML report to
// <dir>/<strategy>_<session>.yaml and returns the written path.
func WriteResult(result *Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot create report directory", err)
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot marshal result", err)
	}

	path := filepath.Join(dir, result.StrategyName+"_"+result.SessionID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeResultStoreFailed, "cannot write report", err)
	}

	return path, nil
}
