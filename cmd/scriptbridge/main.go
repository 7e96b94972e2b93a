// Command scriptbridge runs generated Python scripts against local stand-ins
// for the host capabilities and lists the capability surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/scriptbridge/failure"
)

// Environment variables honored before the config file and flags.
const (
	envPython  = "SCRIPTBRIDGE_PYTHON"
	envTimeout = "SCRIPTBRIDGE_TIMEOUT"
	envWorkDir = "SCRIPTBRIDGE_WORKDIR"
)

func main() {
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var fe *failure.Error
		if errors.As(err, &fe) {
			fmt.Fprintf(os.Stderr, "scriptbridge: %s\n", fe.Error())
			if fe.Excerpt != "" {
				fmt.Fprintln(os.Stderr, fe.Excerpt)
			}
		} else {
			fmt.Fprintf(os.Stderr, "scriptbridge: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scriptbridge",
		Short:         "Run generated Python scripts with host capabilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCallCmd(), newCapabilitiesCmd())
	return root
}
