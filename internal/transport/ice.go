package transport

import (
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers are used when no ICE servers are configured.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
}

// Config holds the settings shared by every PeerConnection a Factory creates.
type Config struct {
	// ICEServers is the list of STUN/TURN servers. Order matters: pion tries
	// them in sequence.
	ICEServers []webrtc.ICEServer

	// IncludeLoopback gathers loopback candidates, needed when both peers
	// live on the same host with no other interface.
	IncludeLoopback bool
}

// DefaultConfig returns a Config using DefaultSTUNServers.
func DefaultConfig() Config {
	return Config{
		ICEServers: []webrtc.ICEServer{{URLs: DefaultSTUNServers}},
	}
}

// ICEServer builds a pion ICE server entry. Empty credentials produce a
// plain STUN entry.
func ICEServer(urls []string, username, credential string) webrtc.ICEServer {
	server := webrtc.ICEServer{URLs: urls}
	if username != "" || credential != "" {
		server.Username = username
		server.Credential = credential
		server.CredentialType = webrtc.ICECredentialTypePassword
	}
	return server
}

// newAPI builds a pion API honouring cfg.
func (cfg Config) newAPI() *webrtc.API {
	settingEngine := webrtc.SettingEngine{}
	if cfg.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}
	return webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
}
