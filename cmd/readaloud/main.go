package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

func main() {
	err := NewRootCmd().Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	shutdownErr := shutdownTelemetry(ctx)
	cancel()
	if shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
