package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// CheckSchemaCompatibility checks whether a strategy's declared schema
// version is compatible with the engine's schema version. Returns nil if
// compatible.
//
// Compatibility rules:
//   - If either version is "main" (development build), the check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.2.0 is compatible with 1.2.5)
func CheckSchemaCompatibility(engineSchema, strategySchema string) error {
	engineSchema = strings.TrimPrefix(engineSchema, "v")
	strategySchema = strings.TrimPrefix(strategySchema, "v")

	if engineSchema == "main" || strategySchema == "main" {
		return nil
	}

	engineVersion, err := semver.NewVersion(engineSchema)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSchemaVersion, err,
			"invalid engine schema version %q", engineSchema)
	}

	strategyVersion, err := semver.NewVersion(strategySchema)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSchemaVersion, err,
			"invalid strategy schema version %q", strategySchema)
	}

	if engineVersion.Major() != strategyVersion.Major() {
		return errors.Newf(errors.ErrCodeSchemaVersion,
			"major version mismatch: engine schema is %d.x.x but strategy requires %d.x.x",
			engineVersion.Major(), strategyVersion.Major())
	}

	if engineVersion.Minor() != strategyVersion.Minor() {
		return errors.Newf(errors.ErrCodeSchemaVersion,
			"minor version mismatch: engine schema is %d.%d.x but strategy requires %d.%d.x",
			engineVersion.Major(), engineVersion.Minor(),
			strategyVersion.Major(), strategyVersion.Minor())
	}

	return nil
}
