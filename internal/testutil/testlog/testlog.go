// Package testlog routes package logs through the test logger profile.
package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"voxel-planner/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("start")
}
