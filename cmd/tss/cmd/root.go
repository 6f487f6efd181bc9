// Package cmd implements the command line interface of a threshold signing party.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/onflow/flow-tss/config"
)

// cli is the state shared by all commands of one invocation.
type cli struct {
	log        zerolog.Logger
	config     *config.Config
	configFile string
}

// Execute runs the root command with the process arguments.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

// NewRootCommand creates the command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "tss",
		Short:         "Run threshold key generation and signing sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "path of a config file (yaml, json or toml)")
	config.InitializeFlags(root.PersistentFlags(), config.DefaultConfig())

	root.AddCommand(
		newGroupCommand(c),
		newKeygenCommand(c),
		newSignCommand(c),
		newProposeCommand(c),
		newSharesCommand(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	conf, err := config.Load(cmd.Flags(), c.configFile)
	if err != nil {
		return err
	}
	c.config = conf

	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	c.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

// printResult writes the result of a command as indented JSON.
func printResult(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
