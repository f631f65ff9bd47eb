package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mediavault/gbackup/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented config file with every default",
		RunE:  runConfigInit,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return writeJSON(cc.Stdout, cc.Cfg)
	}

	return config.RenderEffective(cc.Cfg, cc.CfgPath, cc.Stdout)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	path := config.ResolveConfigPath(cc.Env, config.CLIOverrides{ConfigPath: cc.Flags.ConfigPath})
	if path == "" {
		return errors.New("cannot determine the config directory; pass --config")
	}

	if err := config.WriteTemplate(path); err != nil {
		return err
	}

	cc.Statusf("Wrote %s\n", path)

	return nil
}
