// Command blanktrace runs the local privacy-preserving MITM proxy, and
// provides subcommands for inspecting and managing its audit database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] [command]

Commands:
  run         Start the proxy (default if no command is given)
  stats       Show top tracking domains
  domains     List tracked domains and their block status
  whitelist   Add a domain to the whitelist
  block       Manually block a domain
  export      Export audit log tables as JSON

Flags:
  -config string   Path to configuration file (default "config.yaml")
  -h, --help       Show this help message

Environment:
  BLANKTRACE_LOG   Log level: trace, debug, info (default), warn, error
`, os.Args[0])
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		return
	}

	args := os.Args[1:]
	command := "run"
	if len(args) > 0 && !isFlag(args[0]) {
		command = args[0]
		args = args[1:]
	}

	var err error
	switch command {
	case "run":
		err = runProxy(args)
	case "stats":
		err = runStats(args)
	case "domains":
		err = runDomains(args)
	case "whitelist":
		err = runWhitelist(args)
	case "block":
		err = runBlock(args)
	case "export":
		err = runExport(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "blanktrace: %v\n", err)
		os.Exit(1)
	}
}

func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "config.yaml", "path to configuration file")
}

// shutdownContext returns a context canceled on SIGINT/SIGTERM.
func shutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
