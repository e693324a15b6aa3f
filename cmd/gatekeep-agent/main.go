package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/majeland/gatekeep/internal/agent"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "register":
		cmdRegister(os.Args[2:])
	case "deregister":
		cmdDeregister(os.Args[2:])
	case "blacklist":
		cmdBlacklist(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: gatekeep-agent <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run <command> [args...]   Run a command through admission control")
	fmt.Fprintln(os.Stderr, "  register                  Register this machine as an endpoint")
	fmt.Fprintln(os.Stderr, "  deregister                Deactivate this machine's endpoint")
	fmt.Fprintln(os.Stderr, "  blacklist                 Show the owner's blocked commands")
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// loadAgent resolves the config path and loads the persisted agent state.
func loadAgent(pathFlag string) (*agent.Config, string) {
	path := pathFlag
	if path == "" {
		var err error
		path, err = agent.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := agent.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'gatekeep-agent register' first.")
		os.Exit(1)
	}
	return cfg, path
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Agent config file (default: ~/.gatekeep/agent.json)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gatekeep-agent run [-config FILE] <command> [args...]")
		os.Exit(1)
	}
	command := fs.Arg(0)
	commandArgs := fs.Args()[1:]

	cfg, path := loadAgent(*configPath)
	logger := newLogger(*verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := agent.NewAPIClient(cfg.ServerURL, logger)
	runner := agent.NewRunner(client, cfg, path, logger)

	verdict, err := runner.Gate(ctx, command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch verdict {
	case agent.VerdictAllowed:
		code, err := runner.Execute(ctx, command, commandArgs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(127)
		}
		os.Exit(code)
	case agent.VerdictDenied:
		fmt.Fprintf(os.Stderr, "gatekeep: %q was denied by the account owner\n", command)
	case agent.VerdictExpired:
		fmt.Fprintf(os.Stderr, "gatekeep: approval request for %q expired without a decision\n", command)
	case agent.VerdictTimedOut:
		fmt.Fprintf(os.Stderr, "gatekeep: timed out waiting for a decision on %q\n", command)
	}
	os.Exit(126)
}

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	configPath := fs.String("config", "", "Agent config file (default: ~/.gatekeep/agent.json)")
	serverURL := fs.String("server", "", "Broker server URL (required on first register)")
	userID := fs.String("user", "", "Owner user id (required on first register)")
	name := fs.String("name", "", "Endpoint name (default: generated)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	path := *configPath
	if path == "" {
		var err error
		path, err = agent.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// An existing config makes register a refresh; flags override it.
	cfg, err := agent.LoadConfig(path)
	if err != nil {
		cfg = &agent.Config{}
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *userID != "" {
		cfg.UserID = *userID
	}
	if cfg.ServerURL == "" || cfg.UserID == "" {
		fmt.Fprintln(os.Stderr, "Error: -server and -user are required on first register")
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	userName := ""
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := agent.NewAPIClient(cfg.ServerURL, newLogger(*verbose))
	reg, err := client.Register(ctx, agent.RegisterInfo{
		UserID:     cfg.UserID,
		EndpointID: cfg.EndpointID,
		Name:       *name,
		Hostname:   hostname,
		UserName:   userName,
		OSInfo:     runtime.GOOS + "/" + runtime.GOARCH,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg.EndpointID = reg.ID
	if err := agent.SaveConfig(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Registered endpoint %q (%s)\n", reg.Name, reg.ID)
}

func cmdDeregister(args []string) {
	fs := flag.NewFlagSet("deregister", flag.ExitOnError)
	configPath := fs.String("config", "", "Agent config file (default: ~/.gatekeep/agent.json)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	cfg, path := loadAgent(*configPath)
	if cfg.EndpointID == "" {
		fmt.Fprintln(os.Stderr, "Error: this machine is not registered")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := agent.NewAPIClient(cfg.ServerURL, newLogger(*verbose))
	if err := client.Deregister(ctx, cfg.EndpointID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg.EndpointID = ""
	if err := agent.SaveConfig(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Endpoint deregistered")
}

func cmdBlacklist(args []string) {
	fs := flag.NewFlagSet("blacklist", flag.ExitOnError)
	configPath := fs.String("config", "", "Agent config file (default: ~/.gatekeep/agent.json)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	cfg, _ := loadAgent(*configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := agent.NewAPIClient(cfg.ServerURL, newLogger(*verbose))
	commands, err := client.Blacklist(ctx, cfg.UserID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(commands) == 0 {
		fmt.Println("No blocked commands")
		return
	}
	for _, c := range commands {
		fmt.Println(c)
	}
}
