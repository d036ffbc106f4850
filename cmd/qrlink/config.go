package main

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/qrlink/internal/config"
)

func runConfig(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: config init | validate | show", errUsage)
	}
	fs := newFlagSet("config "+args[0], stderr)
	path := fs.String("path", config.DefaultPath, "config file")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := parse(fs, args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "init":
		if err := config.WriteTemplate(*path, *force); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", *path)
	case "validate":
		if _, err := config.Load(*path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "validated %s\n", *path)
	case "show":
		cfg, err := config.Load(*path)
		if err != nil {
			return err
		}
		return toml.NewEncoder(stdout).Encode(cfg)
	default:
		return fmt.Errorf("%w: unknown config command %q", errUsage, args[0])
	}
	return nil
}
