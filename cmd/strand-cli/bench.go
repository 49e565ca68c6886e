package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/strand-kv/strand-go/resp"
	"github.com/strand-kv/strand-go/strand"
)

var (
	benchRequests int
	benchStats    bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark pipelined command throughput",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := dial(cfg, l)
		if err != nil {
			return err
		}

		var (
			replies int
			cmdErr  error
		)
		handler := func(c *strand.Conn, rep *resp.Reply, err error) {
			if err != nil {
				cmdErr = err
				return
			}
			replies++
			if replies == benchRequests {
				c.Disconnect()
			}
		}

		start := time.Now()
		for i := 0; i < benchRequests; i++ {
			if err := c.SendCommand(handler, "PING"); err != nil {
				c.Close()
				return err
			}
		}

		var stop atomic.Bool
		if err := c.RunLoop(&stop, cfg.PollInterval); err != nil {
			return err
		}
		if cmdErr != nil {
			return cmdErr
		}
		elapsed := time.Since(start)

		fmt.Printf("%d requests in %v (%.0f req/s)\n",
			replies, elapsed, float64(replies)/elapsed.Seconds())
		if benchStats {
			strand.WriteStats(os.Stderr)
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVarP(&benchRequests, "requests", "n", 10000, "number of pipelined requests")
	benchCmd.Flags().BoolVar(&benchStats, "stats", false, "dump client counters after the run")
}
