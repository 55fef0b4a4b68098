package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/ipc"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		noWait  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one datagram to the server and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := net.ResolveUDPAddr("udp", a.cfg.ServerAddr)
			if err != nil {
				return errors.Wrapf(err, "resolve %s", a.cfg.ServerAddr)
			}

			client, err := ipc.Bind(a.cfg.ClientAddr, a.endpointOptions()...)
			if err != nil {
				return err
			}
			defer client.Close()

			if cmd.Flags().Changed("timeout") {
				client.SetReadTimeout(timeout)
			}

			payload := []byte(args[0])
			if noWait {
				n, err := client.Send(payload, dst)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", n, dst)
				return nil
			}

			msg, err := client.SendAndWait(payload, dst, a.cfg.MaxMessageSize)
			if errors.Is(err, ipc.ErrTimeout) {
				fmt.Fprintf(cmd.OutOrStdout(), "no reply from %s within %v\n", dst, client.ReadTimeout())
				return err
			}
			if err != nil {
				return err
			}
			if msg == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "empty reply from %s\n", dst)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "reply from %v (%d bytes): %s\n", msg.Addr, msg.Length(), msg.Body())
			if msg.Truncated() {
				fmt.Fprintf(cmd.OutOrStdout(), "reply truncated to %d bytes\n", msg.Length())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noWait, "no-wait", false, "send without waiting for a reply")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "reply timeout, 0 waits forever (default from config)")
	return cmd
}

func newFrameCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "frame <message>",
		Short: "Send one length-prefixed frame to the stream listener",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.StreamAddr == "" {
				return errors.New("no stream address: set stream_addr or --stream")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := ipc.SendFrame(ctx, a.cfg.StreamAddr, []byte(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d byte frame to %s\n", len(args[0]), a.cfg.StreamAddr)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "dial and write timeout")
	return cmd
}
