// Copyright 2026 The Sunset Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// ICEServer is one STUN or TURN server entry as it appears in
// configuration files.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// ICEConfig holds the ICE servers used when gathering candidates.
type ICEConfig struct {
	// Servers is passed to pion in order. An empty list gathers host
	// candidates only, which is enough on a LAN or loopback.
	Servers []webrtc.ICEServer
}

// ICEConfigFromServers converts configured servers into pion entries,
// dropping entries without any URL and TURN entries without
// credentials (pion rejects those at PeerConnection creation).
func ICEConfigFromServers(servers []ICEServer) ICEConfig {
	var config ICEConfig
	for _, server := range servers {
		var urls []string
		for _, url := range server.URLs {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			if isTURN(url) && (server.Username == "" || server.Credential == "") {
				continue
			}
			urls = append(urls, url)
		}
		if len(urls) == 0 {
			continue
		}
		config.Servers = append(config.Servers, webrtc.ICEServer{
			URLs:       urls,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return config
}

func isTURN(url string) bool {
	return strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:")
}
