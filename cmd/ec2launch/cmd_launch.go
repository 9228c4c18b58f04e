package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/ec2launch/internal/config"
	"github.com/yairfalse/ec2launch/internal/launch"
	"github.com/yairfalse/ec2launch/internal/params"
	"github.com/yairfalse/ec2launch/internal/report"
	"github.com/yairfalse/ec2launch/internal/telemetry"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

func runLaunch(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if err := telemetry.SetupLogging(cmd.ErrOrStderr(), cfg.Log.Level, opts.debug); err != nil {
		return err
	}

	// Inputs are checked before anything touches the provider.
	lp, err := params.Validate(params.FromFlags(cmd.Flags()))
	if err != nil {
		return err
	}

	guard, err := loadGuard(ctx, cfg)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return dryRun(ctx, cmd, cfg, guard, lp)
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	log.Info().
		Str("provider", s.provider.Name()).
		Str("image_id", lp.ImageID).
		Bool("subnet", lp.HasSubnet()).
		Msg("launching instance")

	tok, out, release := waitToken(cfg, cmd.ErrOrStderr())
	console := report.NewConsole(out)
	svc := serviceFor(cfg, s, tok, console, guard)

	result, err := runWait(ctx, func(ctx context.Context) (instance.Result, error) {
		return svc.Run(ctx, lp)
	})
	release()
	if err != nil {
		console.Done()
		return err
	}

	return finish(cmd, cfg, console, result)
}

func dryRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, guard launch.Guard, lp instance.LaunchParams) error {
	spec := launch.BuildRequest(lp, cfg.Launch.InstanceType)
	if err := guard.Check(ctx, lp, spec); err != nil {
		return err
	}
	return report.RenderSpec(cmd.OutOrStdout(), spec, cfg.Output.Format)
}
