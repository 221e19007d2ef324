package repomanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/omnivore/internal/logging"
)

// gooseLogger routes goose output through the application logger.
type gooseLogger struct {
	logger logging.Logger
}

func (g *gooseLogger) Printf(format string, v ...any) {
	g.logger.Info(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

// Fatalf is only reached by goose's legacy helpers; it logs and panics
// instead of exiting the process.
func (g *gooseLogger) Fatalf(format string, v ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	g.logger.Error(context.Background(), msg, "component", "goose")
	panic(msg)
}
