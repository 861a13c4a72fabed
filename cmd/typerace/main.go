// typerace - distributed typing race contests
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/mpratt/typerace/internal/accounts"
	"github.com/mpratt/typerace/internal/auth"
	"github.com/mpratt/typerace/internal/client"
	"github.com/mpratt/typerace/internal/config"
	"github.com/mpratt/typerace/internal/directory"
	"github.com/mpratt/typerace/internal/storage"
	"github.com/mpratt/typerace/internal/worker"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "directory":
		cmdDirectory(os.Args[2:])
	case "worker":
		cmdWorker(os.Args[2:])
	case "play":
		cmdPlay(os.Args[2:])
	case "version":
		fmt.Printf("typerace %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: typerace <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  directory <client-port> <worker-port>  Start the directory node")
	fmt.Println("  worker <dir-host> <dir-port> <client-port>")
	fmt.Println("                                         Start a worker node")
	fmt.Println("  play <dir-host> <dir-port>             Play as an interactive client")
	fmt.Println("  version                                Show version")
	fmt.Println("  help                                   Show this help")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>                        Path to YAML config file")
}

// parsePort validates a positional port argument.
func parsePort(arg string) int {
	port, err := strconv.Atoi(arg)
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "Invalid port: %s\n", arg)
		os.Exit(2)
	}
	return port
}

// fatalf reports a startup failure and exits.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(3)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func warnEmptySecret(cfg *config.Config) {
	if cfg.Auth.TicketSecret == "" {
		log.Printf("warning: no ticket secret configured, join tickets are signed with an empty secret")
	}
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}

func cmdDirectory(args []string) {
	fs := flag.NewFlagSet("directory", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: typerace directory [--config path] <client-port> <worker-port>")
		os.Exit(1)
	}
	clientPort := parsePort(fs.Arg(0))
	workerPort := parsePort(fs.Arg(1))

	cfg := loadConfig(*configPath)
	warnEmptySecret(cfg)

	history, err := storage.New(cfg.Database.Path)
	if err != nil {
		fatalf("Failed to open contest history database: %v", err)
	}
	defer history.Close()

	accts := accounts.New(cfg.Files.Accounts)
	authSvc := auth.NewService(cfg.Auth.TicketSecret, cfg.Auth.TicketTTL)
	srv := directory.New(cfg, accts, history, authSvc)

	playerAddr := fmt.Sprintf(":%d", clientPort)
	workerAddr := fmt.Sprintf(":%d", workerPort)
	if err := srv.Run(signalContext(), playerAddr, workerAddr); err != nil {
		fatalf("Directory failed: %v", err)
	}
	log.Printf("directory shut down")
}

func cmdWorker(args []string) {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Usage: typerace worker [--config path] <dir-host> <dir-port> <client-port>")
		os.Exit(1)
	}
	dirHost := fs.Arg(0)
	dirPort := parsePort(fs.Arg(1))
	clientPort := parsePort(fs.Arg(2))

	cfg := loadConfig(*configPath)
	warnEmptySecret(cfg)

	prompts, err := worker.LoadPrompts(cfg.Files.Prompts)
	if err != nil {
		fatalf("Failed to load prompts: %v", err)
	}

	dirURL := fmt.Sprintf("ws://%s/", net.JoinHostPort(dirHost, strconv.Itoa(dirPort)))
	link, err := worker.DialLink(dirURL, cfg.Net.HandshakeTimeout, cfg.Net.WriteTimeout, clientPort)
	if err != nil {
		fatalf("Failed to register with directory: %v", err)
	}

	authSvc := auth.NewService(cfg.Auth.TicketSecret, cfg.Auth.TicketTTL)
	srv := worker.New(cfg, authSvc, link, prompts)

	if err := srv.Run(signalContext(), fmt.Sprintf(":%d", clientPort)); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
	log.Printf("worker shut down")
}

func cmdPlay(args []string) {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: typerace play [--config path] <dir-host> <dir-port>")
		os.Exit(1)
	}
	dirHost := fs.Arg(0)
	dirPort := parsePort(fs.Arg(1))

	cfg := loadConfig(*configPath)

	cl := client.New(cfg, os.Stdin, os.Stdout)
	if err := cl.Run(dirHost, dirPort); err != nil {
		log.Fatalf("play session ended: %v", err)
	}
}
