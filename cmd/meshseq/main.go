// meshseq compiles a numbered sequence of mesh files into an animated glTF.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Faultbox/meshseq/internal/config"
	"github.com/Faultbox/meshseq/internal/logger"
)

// version is set at link time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "build", "b":
		err = cmdBuild(args)
	case "frames", "ls":
		err = cmdFrames(args)
	case "inspect", "info":
		err = cmdInspect(args)
	case "config":
		err = cmdConfig(args)
	case "version", "--version":
		fmt.Println("meshseq", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshseq - compile mesh sequences into animated glTF

Usage:
  meshseq <command> [options]

Commands:
  build <pattern> [options]     Compile matching frames into a .glb or .gltf
  frames <pattern> [options]    List the frames a pattern resolves to
  inspect <file.glb|file.gltf>  Summarize a glTF document
  config [options]              Print the effective configuration
  version                       Print the version

Patterns:
  #        frame number digits (exactly one)
  {...}    capture group; captures name the sequence
  ? * **   one character, part of a path segment, any segments

Examples:
  meshseq build "out/frame_#.vtk" -o anim.glb
  meshseq build "{*}/step_#.vtu" --fps 30 -o runs.gltf --buffer embedded
  meshseq build "sim_#.obj" --config meshseq.yaml -o s3://bucket/sim.glb
  meshseq frames "out/frame_#.vtk" --step 2
  meshseq inspect anim.glb`)
}

// parseArgs parses flags interleaved with positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// loadConfig parses a command's arguments into a configuration. The first
// positional argument, when present, is the input pattern.
func loadConfig(name string, args []string) (*config.Config, []string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, err
	}
	if len(positional) > 0 {
		cfg.Input.Pattern = positional[0]
		positional = positional[1:]
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, positional, nil
}

// signalContext is canceled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var errUsage = errors.New("missing argument")
