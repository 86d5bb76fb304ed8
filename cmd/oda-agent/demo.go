package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onedragon-agent/oda-agent/internal/oda/agentconfig"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine/enginetest"
	"github.com/onedragon-agent/oda-agent/internal/oda/model"
)

// newDemoCommand runs a scripted retry-then-succeed scenario against
// the in-memory fault-injecting engine fake, printing every observed
// event including the injected RETRY_ATTEMPT event (§8 boundary
// scenario S2).
func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run a scripted retry-then-succeed scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oc, fake, teardown, err := bootContext(ctx)
			if err != nil {
				return err
			}
			defer teardown()

			const appName = "oda-agent-demo"
			if err := oc.Models().Create(ctx, model.Config{
				AppName: appName, ModelID: "demo-model", BaseURL: "http://localhost", APIKey: "none", Model: "flaky",
			}); err != nil {
				return err
			}
			if err := oc.AgentConfigs().Create(ctx, agentconfig.Config{
				AppName: appName, AgentName: "flaky-agent", AgentType: "flaky",
				ModelConfigID: "demo-model", Instruction: "demonstrate a retried run",
			}); err != nil {
				return err
			}

			fake.SetPlan("flaky",
				enginetest.FailWithRaisedError(echoEvent("partial progress on attempt 1")),
				enginetest.Succeed(echoEvent("completed on attempt 2")),
			)

			sess, err := oc.Sessions().CreateSession(ctx, appName, "demo-user", "")
			if err != nil {
				return err
			}

			stream, err := sess.ProcessMessage(ctx, "run the flaky task", "flaky-agent")
			if err != nil {
				return fmt.Errorf("process message: %w", err)
			}
			for ev := range stream.Events() {
				printEvent(ev)
			}
			fmt.Printf("%s demo run complete\n", green("*"))
			return nil
		},
	}
}
