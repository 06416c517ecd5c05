package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/meshseq/internal/config"
)

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	save := fs.String("save", "", "Write the configuration to this file instead of printing it")
	format := fs.String("format", "yaml", "Output format: yaml, toml or json")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if len(positional) > 0 {
		cfg.Input.Pattern = positional[0]
	}

	if *save != "" {
		if err := cfg.SaveTo(*save); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved configuration to %s\n", *save)
		return nil
	}

	data, err := cfg.Marshal("." + *format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
