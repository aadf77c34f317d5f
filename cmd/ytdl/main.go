package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/isseis/go-ytdl-client/logger"
	"github.com/isseis/go-ytdl-client/ytdl_client"
)

const Version = "0.1.0"

func init() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, relying on environment variables")
	}
}

// printUsage prints the complete usage information including commands, flags and environment variables
func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage of %s: [flags] [command] [args]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(out, "  %-36s %s\n", c.name+" "+c.args, c.help)
	}

	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()

	fmt.Fprintln(out, "\nLogger environment variables:")
	for _, v := range logger.GetEnvVarsHelp() {
		fmt.Fprintf(out, "  %-20s %s\n", v.Name, v.Description)
	}
	fmt.Fprintln(out, "\nClient environment variables:")
	for _, v := range ytdl_client.GetEnvVarsHelp() {
		fmt.Fprintf(out, "  %-20s %s\n", v.Name, v.Description)
	}
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, flag.Args(), os.Stdout))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, out io.Writer) int {
	cmd, cmdArgs, err := selectCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		flag.Usage()
		return 2
	}

	clientCfg, err := ytdl_client.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading client config: %v\n\n", err)
		flag.Usage()
		return 1
	}
	logCfg, err := logger.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading logger config: %v\n\n", err)
		flag.Usage()
		return 1
	}
	if logCfg.File == "" {
		if cmd.fullscreen {
			// The dashboard owns the terminal.
			if err := os.MkdirAll(clientCfg.StateDir, 0o700); err == nil {
				logCfg.File = filepath.Join(clientCfg.StateDir, "ytdl.log")
			} else {
				logCfg.Output = io.Discard
			}
		} else {
			logCfg.Output = os.Stderr
		}
	}

	log := logger.NewHybridLogger(*logCfg)
	defer log.Close()
	defer func() {
		if err := log.FlushWebhook(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush webhook logs: %v\n", err)
		}
	}()
	log.Debug("ytdl started", "version", Version, "command", cmd.name)

	client, err := ytdl_client.New(clientCfg, ytdl_client.WithLogger(ytdl_client.NewLoggerAdapter(log)))
	if err != nil {
		log.Error("Failed to create client", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to create client: %v\n", err)
		return 1
	}

	a := &app{client: client, out: out, cfg: clientCfg}
	if err := cmd.run(ctx, a, cmdArgs); err != nil {
		log.Error("Command failed", "command", cmd.name, "error", err)
		a.printNotices()
		return 1
	}
	a.printNotices()
	return 0
}
