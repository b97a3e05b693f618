package main

import (
	"github.com/spf13/cobra"

	"github.com/1ureka/rtcmesh/internal/signaling"
	"github.com/1ureka/rtcmesh/internal/util"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the WebSocket signaling relay",
	Long: `relay serves /ws. Each client names its room and display name in the
query string; the relay assigns ids and routes negotiation messages between
members of the same room.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		srv := signaling.NewServer(signaling.NewRelay())
		addr, err := srv.Start(listen)
		if err != nil {
			return err
		}
		defer srv.Close()

		util.LogSuccess("relay listening on ws://%s/ws", addr)
		<-cmd.Context().Done()
		util.LogInfo("relay shutting down")
		return nil
	},
}

func init() {
	relayCmd.Flags().String("listen", "127.0.0.1:8080", "Address to listen on (\":8080\" for every interface)")
}
