package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/meshstate/pkg/client"
	"github.com/cuemby/meshstate/pkg/config"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Dial a state server and round-trip a ping",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := client.Dial(ctx, cfg.ConnectAddr, cfg.Namespace)
		if err != nil {
			return fmt.Errorf("failed to connect: %v", err)
		}
		defer c.Close()

		start := time.Now()
		echo, pid, err := c.Ping(ctx, "ping")
		if err != nil {
			return fmt.Errorf("ping failed: %v", err)
		}

		fmt.Printf("pong from pid %d (echo=%v, %s)\n", pid, echo, time.Since(start))
		return nil
	},
}
