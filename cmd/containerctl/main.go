// Copyright 2025 AUTHORS
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command containerctl is a thin CLI shim: every subcommand builds one IPC
// message, sends it to the daemon, and prints whatever comes back. It
// never parses a reply beyond decoding the JSON blob the route promises,
// keeping command definitions separate from the actual remote call.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/containervm/hostd/pkg/apierr"
	"github.com/containervm/hostd/pkg/ipc"
)

var (
	socketPath string
	sendTimeout time.Duration
)

func defaultSocketPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "/var/lib/hostd/sock/apiserver.sock"
	}
	return filepath.Join(home, ".hostd", "sock", "apiserver.sock")
}

// send dials the daemon, submits a message for route with the given
// string fields, decodes any JSON blob under resultKey, and prints it.
func send(route string, fields map[string]string, resultKey string) error {
	client := ipc.NewClient(socketPath)
	defer client.Close()

	msg := ipc.New(route)
	for k, v := range fields {
		msg.SetString(k, v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	reply, err := client.Send(ctx, msg, sendTimeout)
	if err != nil {
		return err
	}
	if resultKey == "" {
		return nil
	}
	raw, ok := reply.GetDataNoCopy(resultKey)
	if !ok {
		return nil
	}
	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return apierr.InternalErrorf("format reply: %v", err)
	}
	fmt.Println(string(out))
	return nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "containerctl",
		Short:         "Control the container host daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "daemon IPC socket path")
	root.PersistentFlags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "IPC call timeout")

	root.AddCommand(containersCmd(), volumesCmd(), pluginsCmd(), networkCmd())
	return root
}

func containersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "containers", Short: "Manage containers"}
	cmd.AddCommand(
		&cobra.Command{Use: "list", RunE: func(c *cobra.Command, args []string) error {
			return send("containers.list", nil, "containers")
		}},
		&cobra.Command{Use: "delete <id>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
			return send("containers.delete", map[string]string{"id": args[0]}, "")
		}},
	)
	return cmd
}

func volumesCmd() *cobra.Command {
	var driver string
	cmd := &cobra.Command{Use: "volumes", Short: "Manage volumes"}
	create := &cobra.Command{Use: "create <name>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
		return send("volumes.create", map[string]string{"name": args[0], "driver": driver}, "volume")
	}}
	create.Flags().StringVar(&driver, "driver", "local", "volume driver")
	cmd.AddCommand(
		&cobra.Command{Use: "list", RunE: func(c *cobra.Command, args []string) error {
			return send("volumes.list", nil, "volumes")
		}},
		create,
		&cobra.Command{Use: "delete <name>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
			return send("volumes.delete", map[string]string{"name": args[0]}, "")
		}},
		&cobra.Command{Use: "inspect <name>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
			return send("volumes.inspect", map[string]string{"name": args[0]}, "volume")
		}},
	)
	return cmd
}

func pluginsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plugins", Short: "Manage plugins"}
	cmd.AddCommand(
		&cobra.Command{Use: "list", RunE: func(c *cobra.Command, args []string) error {
			return send("plugins.list", nil, "plugins")
		}},
		&cobra.Command{Use: "load <name>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
			return send("plugins.load", map[string]string{"name": args[0]}, "plugin")
		}},
		&cobra.Command{Use: "unload <name>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
			return send("plugins.unload", map[string]string{"name": args[0]}, "")
		}},
		&cobra.Command{Use: "restart <name>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
			return send("plugins.restart", map[string]string{"name": args[0]}, "")
		}},
	)
	return cmd
}

func networkCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "network", Short: "Inspect the network allocator"}
	cmd.AddCommand(
		&cobra.Command{Use: "state", RunE: func(c *cobra.Command, args []string) error {
			return send("network.state", nil, "state")
		}},
		&cobra.Command{Use: "lookup <name>", Args: cobra.ExactArgs(1), RunE: func(c *cobra.Command, args []string) error {
			return send("network.lookup", map[string]string{"name": args[0]}, "allocation")
		}},
	)
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
