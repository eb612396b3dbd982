package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/watzon/relay/internal/config"
)

// daemonAddr resolves the daemon address: the flag value when given,
// otherwise daemon.listen from the configuration.
func daemonAddr(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Daemon.Listen
}

// fetchDaemon GETs a JSON document from a running daemon and decodes it
// into out.
func fetchDaemon(addr, path string, out any) error {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(base, "/") + path)
	if err != nil {
		return fmt.Errorf("contacting daemon at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding daemon response: %w", err)
	}
	return nil
}
