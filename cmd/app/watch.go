package main

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	URL      string
	InitData string
}

func newWatchCommand(_ *rootOptions) *cobra.Command {
	o := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Stream status changes of a run from a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			return watch(cmd, o, runID)
		},
	}

	cmd.Flags().StringVar(&o.URL, "url", "ws://localhost:"+defaultServerPort, "server base url")
	cmd.Flags().StringVar(&o.InitData, "init-data", "", "telegram init data of the run owner (required)")
	_ = cmd.MarkFlagRequired("init-data")

	return cmd
}

func watchURL(base string, runID uuid.UUID) string {
	return fmt.Sprintf("%s/api/v1/runs/%s/ws", strings.TrimRight(base, "/"), runID)
}

func watch(cmd *cobra.Command, o *watchOptions, runID uuid.UUID) error {
	header := http.Header{}
	header.Add("Authorization", "Telegram "+o.InitData)

	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), watchURL(o.URL, runID), header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-cmd.Context().Done()
		conn.Close()
	}()

	out := cmd.OutOrStdout()
	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if cmd.Context().Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, p, "", "  "); err != nil {
			fmt.Fprintf(out, "%s\n", p)
			continue
		}
		fmt.Fprintln(out, pretty.String())
	}
}
