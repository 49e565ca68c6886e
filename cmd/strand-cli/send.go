package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/strand-kv/strand-go/resp"
	"github.com/strand-kv/strand-go/strand"
)

var sendCmd = &cobra.Command{
	Use:   "send COMMAND [ARG...]",
	Short: "Send a single command and print its reply",
	Args:  cobra.MinimumNArgs(1),
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
			reply  *resp.Reply
			cmdErr error
		)
		if err := c.SendCommand(func(c *strand.Conn, rep *resp.Reply, err error) {
			reply, cmdErr = rep, err
			c.Disconnect()
		}, args...); err != nil {
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
		fmt.Println(reply)
		return nil
	},
}
