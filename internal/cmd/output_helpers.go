package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/wikinav/internal/output"
)

func structuredOutputRequested() bool {
	return output.IsStructured(GetOutputFormat())
}

// printResult writes data to the command's stdout in the selected format.
func printResult(cmd *cobra.Command, data interface{}) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return output.NewPrinter(stdoutFromContext(ctx), GetOutputFormat()).Print(ctx, data)
}

// printf writes human-readable progress to the command's stdout.
func printf(cmd *cobra.Command, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stdoutFromContext(cmd.Context()), format, args...)
}

func stdout(cmd *cobra.Command) io.Writer {
	return stdoutFromContext(cmd.Context())
}
