package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onedragon-agent/oda-agent/internal/oda/agentconfig"
	"github.com/onedragon-agent/oda-agent/internal/oda/mcp"
	"github.com/onedragon-agent/oda-agent/internal/oda/model"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit model/agent/mcp configs",
	}
	cmd.AddCommand(newModelConfigCommand())
	cmd.AddCommand(newAgentConfigCommand())
	cmd.AddCommand(newMcpConfigCommand())
	return cmd
}

func newModelConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "model", Short: "model config CRUD"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list model configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			records, err := oc.Models().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range records {
				fmt.Printf("%s %s/%s -> %s\n", green("*"), c.AppName, c.ModelID, gray(c.Model))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <app_name> <model_id>",
		Short: "get one model config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			c, err := oc.Models().Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", c)
			return nil
		},
	})

	set := &cobra.Command{
		Use:   "set <app_name> <model_id> <base_url> <api_key> <model>",
		Short: "create or update a model config",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			c := model.Config{AppName: args[0], ModelID: args[1], BaseURL: args[2], APIKey: args[3], Model: args[4]}
			if err := oc.Models().Create(cmd.Context(), c); err != nil {
				if err := oc.Models().Update(cmd.Context(), c); err != nil {
					return err
				}
			}
			fmt.Printf("%s saved %s/%s\n", green("ok"), c.AppName, c.ModelID)
			return nil
		},
	}
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <app_name> <model_id>",
		Short: "delete a model config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			return oc.Models().Delete(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}

func newAgentConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "agent", Short: "agent config CRUD"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list agent configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			records, err := oc.AgentConfigs().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range records {
				fmt.Printf("%s %s/%s (%s)\n", green("*"), c.AppName, c.AgentName, gray(c.AgentType))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <app_name> <agent_name>",
		Short: "get one agent config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			c, err := oc.AgentConfigs().Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", c)
			return nil
		},
	})

	set := &cobra.Command{
		Use:   "set <app_name> <agent_name> <agent_type> <model_config_id> <instruction>",
		Short: "create or update an agent config (no tool/mcp refs)",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			c := agentconfig.Config{
				AppName:       args[0],
				AgentName:     args[1],
				AgentType:     args[2],
				ModelConfigID: args[3],
				Instruction:   args[4],
			}
			if err := oc.AgentConfigs().Create(cmd.Context(), c); err != nil {
				if err := oc.AgentConfigs().Update(cmd.Context(), c); err != nil {
					return err
				}
			}
			fmt.Printf("%s saved %s/%s\n", green("ok"), c.AppName, c.AgentName)
			return nil
		},
	}
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <app_name> <agent_name>",
		Short: "delete an agent config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			return oc.AgentConfigs().Delete(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}

func newMcpConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "mcp", Short: "mcp config CRUD (custom tier)"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <app_name>",
		Short: "list mcp configs (both tiers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			entries, err := oc.Mcps().List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s %s (%s)\n", green("*"), e.Key, gray(string(e.Config.ServerType)))
			}
			return nil
		},
	})

	set := &cobra.Command{
		Use:   "set <app_name> <mcp_id> <server_type> <command_or_url>",
		Short: "create or update a custom mcp config",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			c := mcp.Config{AppName: args[0], McpID: args[1], ServerType: mcp.ServerType(args[2])}
			if c.ServerType == mcp.ServerTypeStdio {
				c.Command = args[3]
			} else {
				c.URL = args[3]
			}
			if err := oc.Mcps().RegisterCustom(cmd.Context(), c); err != nil {
				if err := oc.Mcps().UpdateCustom(cmd.Context(), c.AppName, c.McpID, c); err != nil {
					return err
				}
			}
			fmt.Printf("%s saved %s/%s\n", green("ok"), c.AppName, c.McpID)
			return nil
		},
	}
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <app_name> <mcp_id>",
		Short: "delete a custom mcp config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oc, _, teardown, err := bootContext(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown()
			return oc.Mcps().UnregisterCustom(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}
