package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onedragon-agent/oda-agent/internal/oda/agentconfig"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine/enginetest"
	"github.com/onedragon-agent/oda-agent/internal/oda/model"
)

const demoAgentName = "cli-echo"

func newStartCommand() *cobra.Command {
	var appName, userID string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "boot a Context and drive one session from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oc, fake, teardown, err := bootContext(ctx)
			if err != nil {
				return err
			}
			defer teardown()

			if err := oc.Models().Create(ctx, model.Config{
				AppName: appName, ModelID: "cli-model", BaseURL: "http://localhost", APIKey: "none", Model: "echo",
			}); err != nil {
				return fmt.Errorf("register cli model: %w", err)
			}
			if err := oc.AgentConfigs().Create(ctx, agentconfig.Config{
				AppName: appName, AgentName: demoAgentName, AgentType: "echo",
				ModelConfigID: "cli-model", Instruction: "echo the user's message back",
			}); err != nil {
				return fmt.Errorf("register cli agent: %w", err)
			}
			fake.SetPlan("echo", enginetest.Succeed(echoEvent("ready")))

			sess, err := oc.Sessions().CreateSession(ctx, appName, userID, "")
			if err != nil {
				return err
			}
			fmt.Printf("%s session %s ready, type a message (ctrl-d to exit)\n", green("*"), sess.Triple.SessionID)

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				// The fake copies a plan when it builds a runner, so the
				// pooled executor is dropped for this line's plan to apply.
				sess.Cleanup()
				fake.SetPlan("echo", enginetest.Succeed(echoEvent(line)))
				stream, err := sess.ProcessMessage(ctx, line, demoAgentName)
				if err != nil {
					fmt.Printf("%s %v\n", red("error:"), err)
					continue
				}
				for ev := range stream.Events() {
					printEvent(ev)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&appName, "app", "oda-agent-cli", "app_name")
	cmd.Flags().StringVar(&userID, "user", "local", "user_id")
	return cmd
}

func echoEvent(text string) engine.Event {
	return engine.Event{Author: "echo", Content: &engine.Content{Parts: []engine.Part{{Text: text}}}}
}

func printEvent(ev engine.Event) {
	if ev.ErrorCode != "" {
		fmt.Printf("%s [%s] %s\n", red("!"), ev.ErrorCode, ev.ErrorMessage)
		return
	}
	fmt.Printf("%s %s: %s\n", gray("<-"), ev.Author, contentText(ev.Content))
}

func contentText(c *engine.Content) string {
	if c == nil {
		return ""
	}
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = p.Text
	}
	return strings.Join(parts, " ")
}
