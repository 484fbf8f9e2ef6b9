package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/satriahrh/arunika/client/internal/state"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print state changes of a running client",
	Long: `Connect to the /ui endpoint of a running client and print every
state snapshot it pushes.

Examples:
  arunika-client watch
  arunika-client watch --addr 127.0.0.1:9090`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watch(ctx, watchAddr, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "127.0.0.1:8081", "control API address of the client")
	rootCmd.AddCommand(watchCmd)
}

func watch(ctx context.Context, addr string, out io.Writer) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ui"}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", u.String(), err)
	}
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			var snap state.Snapshot
			if err := json.Unmarshal(message, &snap); err != nil {
				fmt.Fprintf(out, "unreadable snapshot: %v\n", err)
				continue
			}
			printSnapshot(out, snap)
		}
	}()

	select {
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil
		}
		return err
	case <-ctx.Done():
		// Cleanly close the connection by sending a close message and then
		// waiting (with timeout) for the client to close the connection.
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			return nil
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
}

func printSnapshot(out io.Writer, snap state.Snapshot) {
	var flags []string
	if snap.IsRecording {
		flags = append(flags, "recording")
	}
	if snap.IsThinking {
		flags = append(flags, "thinking")
	}
	if snap.IsStreamingResponse {
		flags = append(flags, "speaking")
	}
	if snap.IsLoading {
		flags = append(flags, "loading")
	}

	fmt.Fprintf(out, "#%d [%s] live=%s viewing=%s sessions=%d %s\n",
		snap.Version, snap.Connection, snap.LiveSession, snap.ViewingSession,
		len(snap.Sessions), strings.Join(flags, ","))
	for _, entry := range snap.Transcripts {
		response := "..."
		if entry.Response != nil {
			response = *entry.Response
		}
		fmt.Fprintf(out, "  > %s\n  < %s\n", entry.Query, response)
	}
}
