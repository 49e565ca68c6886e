package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/strand-kv/strand-go/resp"
	"github.com/strand-kv/strand-go/strand"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip latency",
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
			sent    int
			started time.Time
			total   time.Duration
			cmdErr  error
		)
		var send func() error
		send = func() error {
			started = time.Now()
			sent++
			return c.SendCommand(func(c *strand.Conn, rep *resp.Reply, err error) {
				if err != nil {
					cmdErr = err
					return
				}
				rtt := time.Since(started)
				total += rtt
				fmt.Printf("%s: %v\n", rep, rtt)
				if sent >= pingCount {
					c.Disconnect()
					return
				}
				if err := send(); err != nil {
					cmdErr = err
					c.Disconnect()
				}
			}, "PING")
		}
		if err := send(); err != nil {
			c.Close()
			return err
		}

		var stop atomic.Bool
		if err := c.RunLoop(&stop, cfg.PollInterval); err != nil {
			return err
		}
		if cmdErr != nil {
			return cmdErr
		}
		fmt.Printf("avg: %v over %d pings\n", total/time.Duration(sent), sent)
		return nil
	},
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 5, "number of pings to send")
}
