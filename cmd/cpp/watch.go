package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/alishhde/Couriers-Planning-Problem/internal/events"
)

var watchInstance string

var watchCmd = &cobra.Command{
	Use:   "watch <server-url>",
	Short: "Print live pipeline events from a running cpp serve",
	Long: `Connects to the event WebSocket of a cpp serve instance and prints one JSON
line per event until interrupted.

Example:
  cpp watch http://localhost:8080 --instance 5`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := eventsURL(args[0], watchInstance)
		if err != nil {
			return usageErrorf("%v", err)
		}
		ctx, cancel := signalContext()
		defer cancel()

		c, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", u, err)
		}
		defer func() { _ = c.Close() }()

		done := make(chan error, 1)
		go func() {
			for {
				var evt events.Event
				if err := c.ReadJSON(&evt); err != nil {
					done <- err
					return
				}
				line, _ := json.Marshal(evt)
				fmt.Fprintln(cmd.OutOrStdout(), string(line))
			}
		}()

		select {
		case <-ctx.Done():
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case err := <-done:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
	},
}

// eventsURL maps a server base URL onto its event stream endpoint.
func eventsURL(base, instance string) (string, error) {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/events/ws"
	q := url.Values{}
	if instance != "" {
		q.Set("instance", instance)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func init() {
	watchCmd.Flags().StringVar(&watchInstance, "instance", "", "Only show events of this instance key")
}
