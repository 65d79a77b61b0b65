package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCommand() *cobra.Command {
	var userID, variant string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a chat message to Mama Bear",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{
				"message": strings.Join(args, " "),
			}
			if userID != "" {
				body["user_id"] = userID
			}
			if variant != "" {
				body["variant"] = variant
			}

			data, err := newClient().post("/api/mama-bear/chat", body)
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id for memory persistence")
	cmd.Flags().StringVar(&variant, "variant", "", "Pin a specific agent variant (skips routing)")
	return cmd
}

func newAgentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Agent variant commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the status of all agent variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/mama-bear/agents/status")
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	})

	return cmd
}

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Sandbox session commands",
	}

	var userID, kind string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new sandbox session",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if userID != "" {
				body["user_id"] = userID
			}
			if kind != "" {
				body["instance_type"] = kind
			}
			data, err := newClient().post("/api/computer-use/sessions", body)
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	}
	createCmd.Flags().StringVarP(&userID, "user", "u", "", "User id owning the session")
	createCmd.Flags().StringVar(&kind, "type", "", "Instance type: ubuntu or browser")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/computer-use/sessions")
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [session-id]",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/computer-use/sessions/" + args[0])
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop [session-id]",
		Short: "Stop a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post(fmt.Sprintf("/api/computer-use/sessions/%s/stop", args[0]), map[string]string{})
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	})

	return cmd
}

func newTaskCommand() *cobra.Command {
	var userID, sessionID string

	cmd := &cobra.Command{
		Use:   "task [description]",
		Short: "Execute a computer-use task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{
				"task": strings.Join(args, " "),
			}
			if userID != "" {
				body["user_id"] = userID
			}
			if sessionID != "" {
				body["session_id"] = sessionID
			}

			data, err := newClient().post("/api/computer-use/execute", body)
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id for activity recording")
	cmd.Flags().StringVar(&sessionID, "session", "", "Existing session id (a new session is created when omitted)")
	return cmd
}

func newWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Predefined workflow commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/computer-use/workflows")
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	})

	var sessionID, userID string
	var params []string
	runCmd := &cobra.Command{
		Use:   "run [name]",
		Short: "Run a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{}
			if sessionID != "" {
				body["session_id"] = sessionID
			}
			if userID != "" {
				body["user_id"] = userID
			}
			if len(params) > 0 {
				kv := map[string]string{}
				for _, p := range params {
					parts := strings.SplitN(p, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid param %q, expected key=value", p)
					}
					kv[parts[0]] = parts[1]
				}
				body["params"] = kv
			}

			data, err := newClient().post("/api/computer-use/workflows/"+args[0], body)
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	}
	runCmd.Flags().StringVar(&sessionID, "session", "", "Existing session id")
	runCmd.Flags().StringVarP(&userID, "user", "u", "", "User id")
	runCmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Workflow parameter (key=value, repeatable)")
	cmd.AddCommand(runCmd)

	return cmd
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/health")
			if err != nil {
				return err
			}
			printJSON(data)
			return nil
		},
	}
}
