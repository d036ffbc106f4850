package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/danmuck/qrlink/internal/logging"
	"github.com/joho/godotenv"
)

const usage = `usage: qrlink <command> [flags] [args]

commands:
  encode   turn files into QR images or a .code text file
  decode   turn QR images or a .code file back into data
  scan     read chunks from a video or frame directory
  config   write or check a configuration file

run "qrlink <command> -h" for command flags.
`

func main() {
	_ = godotenv.Load()
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "encode":
		err = runEncode(ctx, args[1:], stdout, stderr)
	case "decode":
		err = runDecode(ctx, args[1:], stdout, stderr)
	case "scan":
		err = runScan(ctx, args[1:], stdin, stdout, stderr)
	case "config":
		err = runConfig(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "qrlink: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "qrlink %s: %v\n", args[0], err)
		return 2
	default:
		fmt.Fprintf(stderr, "qrlink %s: %v\n", args[0], err)
		return 1
	}
}
