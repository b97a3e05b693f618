package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rtcmesh/internal/config"
	"github.com/1ureka/rtcmesh/internal/mesh"
	"github.com/1ureka/rtcmesh/internal/signaling"
	"github.com/1ureka/rtcmesh/internal/transport"
	"github.com/1ureka/rtcmesh/internal/util"
)

// chatChannel carries the lines typed on stdin.
const chatChannel = "chat"

var joinCmd = &cobra.Command{
	Use:   "join [room]",
	Short: "Join a room and chat with its members",
	Long: `join connects to the relay, enters the room and opens a data channel
connection to every other member. Lines read from stdin are broadcast on the
"chat" channel; messages from peers are printed as they arrive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		return runJoin(cmd.Context(), cfg)
	},
}

func init() {
	flags := joinCmd.Flags()
	flags.StringP("config", "c", "", "YAML config file")
	flags.StringP("room", "r", "", "Room to join (or pass it as the argument)")
	flags.StringP("name", "n", "", "Display name announced to the room")
	flags.String("signal", "", "Relay URL (default "+config.DefaultSignalURL+")")
	flags.Bool("loopback", false, "Gather loopback ICE candidates")
}

// loadConfig layers the config file, then flags, then the positional room.
// Anything still missing is prompted for.
func loadConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.Default()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("room") {
		cfg.Room, _ = flags.GetString("room")
	}
	if flags.Changed("name") {
		cfg.Name, _ = flags.GetString("name")
	}
	if flags.Changed("signal") {
		cfg.SignalURL, _ = flags.GetString("signal")
	}
	if flags.Changed("loopback") {
		cfg.IncludeLoopback, _ = flags.GetBool("loopback")
	}
	if len(args) == 1 {
		cfg.Room = args[0]
	}
	if cfg.Debug {
		util.EnableDebug()
	}

	if cfg.Room == "" {
		cfg.Room = ask("Room to join")
	}
	if cfg.Name == "" {
		cfg.Name = ask("Your display name")
	}

	wsURL, err := normalizeWSURL(cfg.SignalURL)
	if err != nil {
		return cfg, err
	}
	cfg.SignalURL = wsURL

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration:\n%w", err)
	}
	if _, ok := cfg.Channels[chatChannel]; !ok {
		return cfg, fmt.Errorf("channel descriptor has no %q channel", chatChannel)
	}
	return cfg, nil
}

func runJoin(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	link, err := signaling.Dial(ctx, cfg.SignalURL, cfg.Room, cfg.Name)
	if err != nil {
		return err
	}

	m, err := mesh.New(link, mesh.Options{
		Room:       cfg.Room,
		Name:       cfg.Name,
		Channels:   mesh.Descriptor(cfg.Channels),
		Transports: transport.NewFactory(transportConfig(cfg)),
	})
	if err != nil {
		_ = link.Close()
		return err
	}
	defer m.Close()

	m.OnConnection(func(c *mesh.Connection) {
		util.LogSuccess("%s joined the mesh", displayName(c))
	})
	m.OnConnectionEnd(func(c *mesh.Connection) {
		util.LogInfo("%s left the mesh", displayName(c))
	})
	m.OnChannelMessage(chatChannel, func(payload []byte, c *mesh.Connection) {
		pterm.Println(pterm.Cyan(displayName(c)+": ") + string(payload))
	})

	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx) }()

	util.StartStatsReporter(ctx, cfg.StatsInterval)
	util.LogSuccess("joined room %q as %s via %s", cfg.Room, cfg.Name, cfg.SignalURL)

	go readLines(ctx, func(line string) {
		if err := m.Broadcast(chatChannel, []byte(line)); err != nil {
			util.LogWarning("broadcast incomplete: %v", err)
		}
	})

	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("lost the relay: %w", err)
		}
	case <-ctx.Done():
	}

	util.LogInfo("leaving room %q", cfg.Room)
	return nil
}

// transportConfig converts the file's ICE servers to pion entries. With none
// configured the transport defaults apply.
func transportConfig(cfg config.Config) transport.Config {
	tc := transport.DefaultConfig()
	tc.IncludeLoopback = cfg.IncludeLoopback
	if len(cfg.ICEServers) == 0 {
		return tc
	}

	tc.ICEServers = nil
	for _, s := range cfg.ICEServers {
		tc.ICEServers = append(tc.ICEServers, transport.ICEServer(s.URLs, s.Username, s.Credential))
	}
	return tc
}

// readLines calls fn for every non-empty stdin line until ctx ends or stdin
// closes.
func readLines(ctx context.Context, fn func(string)) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			fn(line)
		}
	}
}

func displayName(c *mesh.Connection) string {
	if c.Name() == "" {
		return c.ID()
	}
	return c.Name()
}

// ask prompts until a non-empty answer is entered.
func ask(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()
		pterm.Println()

		if v := strings.TrimSpace(raw); v != "" {
			return v
		}
		util.LogWarning("a value is required")
	}
}
