package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/meshstate/pkg/client"
	"github.com/cuemby/meshstate/pkg/config"
	"github.com/cuemby/meshstate/pkg/wire"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Read or mutate a namespace's shared state",
}

var stateGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the namespace's state, or the value at a top-level key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := client.Dial(ctx, cfg.ConnectAddr, cfg.Namespace)
		if err != nil {
			return fmt.Errorf("failed to connect: %v", err)
		}
		defer c.Close()

		var value any
		if len(args) == 1 {
			value, err = c.RunDictMethod(ctx, wire.DictMethodGet, args[0])
		} else {
			value, err = c.GetState(ctx)
		}
		if err != nil {
			return fmt.Errorf("get failed: %v", err)
		}

		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %v", err)
		}
		fmt.Println(string(encoded))
		return nil
	},
}

var stateSetCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Set a top-level key in the namespace's state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)

		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			return fmt.Errorf("invalid json value: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := client.Dial(ctx, cfg.ConnectAddr, cfg.Namespace)
		if err != nil {
			return fmt.Errorf("failed to connect: %v", err)
		}
		defer c.Close()

		if _, err := c.RunDictMethod(ctx, wire.DictMethodSet, args[0], value); err != nil {
			return fmt.Errorf("set failed: %v", err)
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateGetCmd)
	stateCmd.AddCommand(stateSetCmd)
}
