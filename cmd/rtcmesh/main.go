// rtcmesh joins a room of peers and connects to every other member over
// WebRTC data channels. Signaling goes through a small WebSocket relay,
// which the same binary can run.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rtcmesh/internal/util"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "rtcmesh",
	Short:         "WebRTC full-mesh rooms",
	Long:          `rtcmesh connects every member of a room to every other member over WebRTC data channels.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			util.EnableDebug()
		}
		pterm.Info.Println(fmt.Sprintf("rtcmesh v%s", version))
		pterm.Println()
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(relayCmd)
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		stop()
		os.Exit(1)
	}
}

// normalizeWSURL validates a relay URL and points it at the /ws endpoint.
// Schemes other than ws and wss become wss.
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}
