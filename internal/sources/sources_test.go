package sources

import (
	"github.com/rs/zerolog"
)

// Shared test fixtures.
const (
	testIMDBID = "tt1375666"

	failedToWriteResp = "failed to write response: %v"
	expectedErrGotNil = "expected error, got nil"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()

	return &l
}
