/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gofountain/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return RunConfigPath(cmd.OutOrStdout())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return RunConfigShow(cmd.OutOrStdout(), app.cfg, app.secret != "")
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return RunConfigInit(cmd.OutOrStdout())
	},
}

var configPasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Store the Postgres library password (read from stdin) in the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return RunConfigPassword(cmd.OutOrStdout(), cmd.InOrStdin(), app.cfg)
	},
}

var configForgetCmd = &cobra.Command{
	Use:   "forget-password",
	Short: "Remove the stored Postgres library password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.ForgetPassword(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "password removed")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd, configPasswordCmd, configForgetCmd)
	rootCmd.AddCommand(configCmd)
}

// RunConfigPath prints where the config file is read from.
func RunConfigPath(w io.Writer) error {
	p, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, p)
	return nil
}

// RunConfigShow prints cfg as YAML followed by the active environment overrides.
func RunConfigShow(w io.Writer, cfg config.Config, hasPassword bool) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if cfg.Library.Driver == config.DriverPostgres {
		state := "not set"
		if hasPassword {
			state = "stored in keyring"
		}
		fmt.Fprintf(w, "# library password: %s\n", state)
	}
	for _, k := range config.Keys() {
		if env, ok := config.EnvOverrideFor(k); ok {
			fmt.Fprintf(w, "# %s overridden by %s\n", k, env)
		}
	}
	return nil
}

// RunConfigInit writes the defaults unless a config file already exists.
func RunConfigInit(w io.Writer) error {
	p, err := config.Path()
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		return fmt.Errorf("%s already exists", p)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.Save(config.Defaults(), ""); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", okStyle.Render("wrote"), p)
	return nil
}

// RunConfigPassword reads one line from r and stores it as the library password.
func RunConfigPassword(w io.Writer, r io.Reader, cfg config.Config) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return errors.New("empty password")
	}
	if err := config.Save(cfg, secret); err != nil {
		return err
	}
	fmt.Fprintln(w, "password stored in keyring")
	return nil
}
