package main

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jointfeed/openvr-adapter/pkg/host"
)

// localizations is the English status table.
var localizations = map[string]string{
	"/Plugins/OpenVR/Statuses/Success":         "Connected to OpenVR",
	"/Plugins/OpenVR/Statuses/NotInitialized":  "OpenVR is not initialized",
	"/Plugins/OpenVR/Statuses/Connecting":      "Connecting to OpenVR...",
	"/Plugins/OpenVR/Statuses/SelfElevated":    "This application runs elevated but SteamVR does not. Restart it without administrator rights.",
	"/Plugins/OpenVR/Statuses/RuntimeElevated": "SteamVR runs elevated but this application does not. Restart SteamVR without administrator rights.",
	"/Plugins/OpenVR/Statuses/InitFailed":      "Could not start an OpenVR session",
	"/Plugins/OpenVR/Statuses/Timeout":         "Timed out connecting to OpenVR",
	"/Plugins/OpenVR/Statuses/Shutdown":        "OpenVR session closed",
}

// appHost is the harness's implementation of the host contract.
type appHost struct {
	logger   host.Logger
	lock     sync.Mutex
	language string

	refreshes atomic.Int64
	onRefresh func()
}

func newAppHost(logger host.Logger, language string) *appHost {
	return &appHost{logger: logger, language: language}
}

func (h *appHost) Logger() host.Logger {
	return h.logger
}

func (h *appHost) UpdateLock() sync.Locker {
	return &h.lock
}

func (h *appHost) Localize(key string) string {
	if s, ok := localizations[key]; ok {
		return s
	}
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func (h *appHost) RefreshStatus() {
	h.refreshes.Add(1)
	if h.onRefresh != nil {
		go h.onRefresh()
	}
}

func (h *appHost) DocsLanguage() string {
	return h.language
}
