// Command chasm reads and writes a chasm repository from the command line.
//
// Usage:
//
//	chasm [global flags] <command> [flags] [args]
//
// The repository is described by a configuration file (--config) or by one
// or more --location flags, nearest tier first. With neither, an in-memory
// repository is used, which is only useful for trying things out.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/getsentry/raven-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ndlib/chasm/config"
	"github.com/ndlib/chasm/repository"
)

// A command is one subcommand of the tool.
type command struct {
	summary string
	usage   string
	// run is called with the remaining arguments. repo is nil for
	// commands with needsRepo false.
	run       func(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error
	needsRepo bool
}

var commands = map[string]command{
	"put":      {"store files as objects", "put FILE...", runPut, true},
	"cat":      {"write an object to stdout", "cat ID", runCat, true},
	"hash":     {"print the id files would have", "hash FILE...", runHash, false},
	"mktree":   {"write a tree", "mktree NAME=ID... (a NAME ending in / is a tree)", runMktree, true},
	"tree":     {"list a tree", "tree [--commit] ID | NAME BRANCH", runTree, true},
	"commit":   {"write a commit", "commit [--parent ID]... [--author NAME] -m MESSAGE TREE-ID", runCommit, true},
	"show":     {"show a commit", "show COMMIT-ID", runShow, true},
	"ref":      {"read or move a commit ref", "ref NAME BRANCH [COMMIT-ID [--previous ID]]", runRef, true},
	"branches": {"list the refs of a name", "branches NAME", runBranches, true},
	"names":    {"list every ref name", "names", runNames, true},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout io.Writer) error {
	var (
		configFile string
		locations  []string
		codecName  string
		compress   string
		sentryDSN  string
		verbose    bool
	)
	flags := pflag.NewFlagSet("chasm", pflag.ContinueOnError)
	flags.StringVarP(&configFile, "config", "c", "", "configuration file")
	flags.StringArrayVarP(&locations, "location", "l", nil, "tier location, nearest first (repeatable)")
	flags.StringVar(&codecName, "codec", "", "codec: cbor, json or msgpack")
	flags.StringVar(&compress, "compression", "", "compression: none, zappy, lz4 or zstd")
	flags.StringVar(&sentryDSN, "sentry", "", "sentry DSN for error reports")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debugging output")
	flags.SetInterspersed(false)
	flags.Usage = func() { usage(flags) }
	if err := flags.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	args := flags.Args()
	if len(args) == 0 {
		usage(flags)
		return fmt.Errorf("no command given")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	ctx := context.Background()
	if !cmd.needsRepo {
		return cmd.run(ctx, nil, stdout, args[1:])
	}
	cfg, err := loadConfig(configFile, locations)
	if err != nil {
		return err
	}
	if codecName != "" {
		cfg.Codec = codecName
	}
	if compress != "" {
		cfg.Compression = compress
	}
	if sentryDSN != "" {
		cfg.SentryDSN = sentryDSN
	}
	if cfg.SentryDSN != "" {
		if err := raven.SetDSN(cfg.SentryDSN); err != nil {
			return err
		}
	}
	repo, closer, err := config.Open(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.WithFields(log.Fields{"tiers": len(cfg.Tiers), "codec": cfg.Codec}).Debugln("opened repository")
	return cmd.run(ctx, repo, stdout, args[1:])
}

// loadConfig reads the configuration file, or builds one from locations.
func loadConfig(file string, locations []string) (*config.Config, error) {
	if file != "" {
		if len(locations) > 0 {
			return nil, fmt.Errorf("give either --config or --location, not both")
		}
		return config.Load(file)
	}
	cfg := config.Default()
	if len(locations) > 0 {
		cfg.Tiers = nil
		for _, loc := range locations {
			cfg.Tiers = append(cfg.Tiers, config.Tier{Location: loc})
		}
	}
	return cfg, cfg.Validate()
}

func usage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: chasm [flags] <command> [args]\n\nflags:\n")
	fmt.Fprint(os.Stderr, flags.FlagUsages())
	fmt.Fprintf(os.Stderr, "\ncommands:\n")
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n            %s\n", name, commands[name].summary, commands[name].usage)
	}
}
