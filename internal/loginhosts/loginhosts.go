// ABOUTME: Remembers login hosts the user has signed in through
// ABOUTME: Stored as JSON in the config directory and offered by the login host picker

package loginhosts

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MaxRecentHosts is the maximum number of hosts to keep
const MaxRecentHosts = 5

// History manages the list of recently used login hosts, newest first
type History struct {
	configDir string

	mu    sync.Mutex
	hosts []string
}

type historyData struct {
	Hosts []string `json:"hosts"`
}

// New creates a History stored under configDir
func New(configDir string) *History {
	return &History{configDir: configDir}
}

func (h *History) configFile() string {
	return filepath.Join(h.configDir, "login_hosts.json")
}

// Load reads the host list from disk. Entries that are not absolute
// https URLs are dropped; an unreadable file starts fresh.
func (h *History) Load() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked()
}

func (h *History) loadLocked() ([]string, error) {
	data, err := os.ReadFile(h.configFile())
	if os.IsNotExist(err) {
		h.hosts = []string{}
		return h.snapshotLocked(), nil
	}
	if err != nil {
		return nil, err
	}

	var stored historyData
	if err := json.Unmarshal(data, &stored); err != nil {
		h.hosts = []string{}
		return h.snapshotLocked(), nil
	}

	h.hosts = make([]string, 0, len(stored.Hosts))
	for _, host := range stored.Hosts {
		if n, ok := normalize(host); ok {
			h.hosts = append(h.hosts, n)
		}
	}
	return h.snapshotLocked(), nil
}

// Save writes hosts to disk, keeping at most MaxRecentHosts
func (h *History) Save(hosts []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saveLocked(hosts)
}

func (h *History) saveLocked(hosts []string) error {
	if err := os.MkdirAll(h.configDir, 0700); err != nil {
		return err
	}

	if len(hosts) > MaxRecentHosts {
		hosts = hosts[:MaxRecentHosts]
	}
	h.hosts = hosts

	data, err := json.MarshalIndent(historyData{Hosts: hosts}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.configFile(), data, 0600)
}

// Add records host as the most recent one (moves to front if present)
func (h *History) Add(host string) error {
	n, ok := normalize(host)
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hosts == nil {
		if _, err := h.loadLocked(); err != nil {
			h.hosts = []string{}
		}
	}

	next := make([]string, 0, len(h.hosts)+1)
	next = append(next, n)
	for _, existing := range h.hosts {
		if existing != n {
			next = append(next, existing)
		}
	}
	return h.saveLocked(next)
}

// List returns the recent hosts, loading them on first use
func (h *History) List() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hosts == nil {
		if _, err := h.loadLocked(); err != nil {
			return []string{}
		}
	}
	return h.snapshotLocked()
}

func (h *History) snapshotLocked() []string {
	out := make([]string, len(h.hosts))
	copy(out, h.hosts)
	return out
}

// normalize trims the trailing slash and accepts only https URLs with a host.
func normalize(host string) (string, bool) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	u, err := url.Parse(host)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", false
	}
	return host, true
}
