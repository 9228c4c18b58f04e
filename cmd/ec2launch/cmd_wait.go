package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ec2launch/internal/params"
	"github.com/yairfalse/ec2launch/internal/report"
	"github.com/yairfalse/ec2launch/internal/telemetry"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

func newWaitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "wait INSTANCE_ID...",
		Short: "Wait for existing instances to leave pending",
		Long: `Polls instances that were launched earlier until every one has left the
pending state, then prints the same report as a launch. The ids must come
from a single launch.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWaitCmd(cmd, opts, args)
		},
	}
}

func runWaitCmd(cmd *cobra.Command, opts *options, ids []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if err := telemetry.SetupLogging(cmd.ErrOrStderr(), cfg.Log.Level, opts.debug); err != nil {
		return err
	}

	handles, err := params.ValidateInstanceIDs(ids)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	tok, out, release := waitToken(cfg, cmd.ErrOrStderr())
	console := report.NewConsole(out)
	svc := serviceFor(cfg, s, tok, console, nil)

	result, err := runWait(ctx, func(ctx context.Context) (instance.Result, error) {
		return svc.Wait(ctx, handles)
	})
	release()
	if err != nil {
		console.Done()
		return err
	}

	return finish(cmd, cfg, console, result)
}
