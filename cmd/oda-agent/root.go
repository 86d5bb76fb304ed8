package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	odacontext "github.com/onedragon-agent/oda-agent/internal/oda/context"
	"github.com/onedragon-agent/oda-agent/internal/oda/bootstrap"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine/enginetest"
)

// NewRootCommand builds the "oda-agent" cobra tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "oda-agent",
		Short: "OneDragon Agent runtime CLI",
		Long: `oda-agent boots a Context over the multi-session, multi-agent
runtime and exposes CRUD over model/agent/mcp configs plus a scripted
demo run against an in-memory engine fake.`,
		SilenceUsage: true,
	}

	root.AddCommand(newStartCommand())
	root.AddCommand(newConfigCommand())
	root.AddCommand(newDemoCommand())

	return root
}

// bootContext loads bootstrap settings and starts a Context wired to a
// fresh enginetest.Engine fake, which doubles as SessionStore,
// AgentBuilder, and RunnerBuilder. Returns the started Context and the
// fake (for demo fault-injection) plus a teardown func.
func bootContext(ctx context.Context) (*odacontext.Context, *enginetest.Engine, func(), error) {
	settings, err := bootstrap.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load bootstrap settings: %w", err)
	}

	fake := enginetest.New()
	cfg := settings.ToContextConfig()
	cfg.Engine = odacontext.Engine{
		Sessions:     fake,
		Artifacts:    nil,
		Memory:       nil,
		AgentBuilder: fake,
		RunnerBuild:  fake,
	}

	oc := odacontext.New(cfg)
	if err := oc.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("start context: %w", err)
	}

	teardown := func() { _ = oc.Stop(ctx) }
	return oc, fake, teardown, nil
}
