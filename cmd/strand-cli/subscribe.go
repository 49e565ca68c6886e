package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/strand-kv/strand-go/resp"
	"github.com/strand-kv/strand-go/strand"
)

var subscribePatterns bool

var subscribeCmd = &cobra.Command{
	Use:   "subscribe NAME [NAME...]",
	Short: "Subscribe to channels (or patterns) and print messages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		c, err := dial(cfg, l, strand.WithDisconnectHandler(func(c *strand.Conn, err error) {
			cancel()
		}))
		if err != nil {
			return err
		}

		command := "SUBSCRIBE"
		if subscribePatterns {
			command = "PSUBSCRIBE"
		}
		handler := func(c *strand.Conn, rep *resp.Reply, err error) {
			if err != nil {
				return
			}
			switch rep.Index(0).Text() {
			case "subscribe", "psubscribe":
				fmt.Fprintln(os.Stderr, "subscribed:", rep.Index(1))
			case "message":
				fmt.Printf("%s: %s\n", rep.Index(1), rep.Index(2))
			case "pmessage":
				fmt.Printf("%s (%s): %s\n", rep.Index(2), rep.Index(1), rep.Index(3))
			}
		}
		if err := c.SendCommand(handler, append([]string{command}, args...)...); err != nil {
			c.Close()
			return err
		}

		loop := strand.StartLoop(c, cfg.PollInterval)
		<-ctx.Done()
		if err := loop.Stop(); err != nil {
			return err
		}
		c.Close()
		return nil
	},
}

func init() {
	subscribeCmd.Flags().BoolVarP(&subscribePatterns, "patterns", "p", false, "treat arguments as glob patterns")
}
