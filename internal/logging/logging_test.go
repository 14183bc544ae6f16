package logging_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sleroy/komea-salesforce-connector/internal/logging"
)

func TestSetup_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	logging.Setup("debug", false)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	logging.Setup(" WARN ", true)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	logging.Setup("chatty", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	logging.Setup("", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
