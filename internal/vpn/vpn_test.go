package vpn_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ferry/internal/testsupport"
	"ferry/internal/vpn"
)

// writeScript drops an executable shell script into dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNoopProviderWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.VPN.ConnectionName = ""

	provider := vpn.NewProvider(cfg, nil)
	if err := provider.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("noop provider returned error: %v", err)
	}
}

func TestEnsureConnectedWhenStatusReportsActive(t *testing.T) {
	dir := t.TempDir()
	status := writeScript(t, dir, "status.sh", `echo "office-tunnel: connected"`)

	cfg := testsupport.NewConfig(t)
	cfg.VPN.ConnectionName = "office-tunnel"
	cfg.VPN.StatusCommand = status
	cfg.VPN.DialCommand = writeScript(t, dir, "dial.sh", "exit 1")
	cfg.VPN.MaxAttempts = 1

	provider := vpn.NewProvider(cfg, nil)
	if err := provider.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
}

func TestEnsureConnectedDialsWhenDown(t *testing.T) {
	dir := t.TempDir()

	// The status script reports the connection only after the dial script has
	// dropped its marker file.
	marker := filepath.Join(dir, "connected")
	status := writeScript(t, dir, "status.sh",
		`if [ -f "`+marker+`" ]; then echo "office-tunnel: connected"; else echo "no active connections"; fi`)
	dial := writeScript(t, dir, "dial.sh", `touch "`+marker+`"`)

	cfg := testsupport.NewConfig(t)
	cfg.VPN.ConnectionName = "office-tunnel"
	cfg.VPN.StatusCommand = status
	cfg.VPN.DialCommand = dial
	cfg.VPN.MaxAttempts = 2
	cfg.VPN.RetryDelaySeconds = 0

	provider := vpn.NewProvider(cfg, nil)
	if err := provider.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
}

func TestEnsureConnectedExhaustsAttempts(t *testing.T) {
	dir := t.TempDir()
	status := writeScript(t, dir, "status.sh", `echo "no active connections"`)
	dial := writeScript(t, dir, "dial.sh", "exit 0")

	cfg := testsupport.NewConfig(t)
	cfg.VPN.ConnectionName = "office-tunnel"
	cfg.VPN.StatusCommand = status
	cfg.VPN.DialCommand = dial
	cfg.VPN.MaxAttempts = 2
	cfg.VPN.RetryDelaySeconds = 0

	provider := vpn.NewProvider(cfg, nil)
	if err := provider.EnsureConnected(context.Background()); err == nil {
		t.Fatal("expected failure when connection never comes up")
	}
}
