package notify

import (
	"context"

	"github.com/quantgrid/oppscan/pkg/logger"
)

// StubTransport logs the composed message instead of sending it. It
// always acknowledges delivery, keeping the pipeline's notified state
// reachable without external credentials.
type StubTransport struct {
	logger *logger.Logger
}

// NewStubTransport creates a logging transport.
func NewStubTransport(log *logger.Logger) *StubTransport {
	return &StubTransport{logger: log}
}

func (t *StubTransport) Send(_ context.Context, message string, recipients []string) error {
	t.logger.WithFields(map[string]interface{}{
		"recipients": len(recipients),
		"message":    message,
	}).Info("Stub notification")
	return nil
}
