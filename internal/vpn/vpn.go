// Package vpn ensures the tunnel to the source storage network is up before
// a transfer pass. The provider shells out to the host's VPN tooling; which
// commands to run is configuration, not code.
package vpn

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"ferry/internal/config"
	"ferry/internal/logging"
)

// Provider reports and establishes connectivity to the source network.
type Provider interface {
	EnsureConnected(ctx context.Context) error
}

// NewProvider builds a provider from config. When no connection name is
// configured, a noop provider is returned and runs proceed without a tunnel.
func NewProvider(cfg *config.Config, logger *slog.Logger) Provider {
	name := strings.TrimSpace(cfg.VPN.ConnectionName)
	if name == "" {
		return noopProvider{}
	}
	maxAttempts := cfg.VPN.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryDelay := time.Duration(cfg.VPN.RetryDelaySeconds) * time.Second
	return &execProvider{
		connectionName: name,
		statusCommand:  strings.Fields(cfg.VPN.StatusCommand),
		dialCommand:    strings.Fields(cfg.VPN.DialCommand),
		maxAttempts:    maxAttempts,
		retryDelay:     retryDelay,
		logger:         logging.NewComponentLogger(logger, "vpn"),
	}
}

type execProvider struct {
	connectionName string
	statusCommand  []string
	dialCommand    []string
	maxAttempts    int
	retryDelay     time.Duration
	logger         *slog.Logger
}

// EnsureConnected returns nil when the status command reports the connection
// name as active. Otherwise it runs the dial command and re-checks, retrying
// up to the configured attempt budget.
func (p *execProvider) EnsureConnected(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			p.logger.Info("retrying vpn connection", logging.Int("attempt", attempt))
		}

		connected, err := p.isConnected(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if connected {
			return nil
		}

		if err := p.dial(ctx); err != nil {
			lastErr = err
			continue
		}
		connected, err = p.isConnected(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if connected {
			p.logger.Info("vpn connection established",
				logging.String("connection", p.connectionName))
			return nil
		}
		lastErr = fmt.Errorf("connection %q not active after dial", p.connectionName)
	}
	return fmt.Errorf("vpn connect failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *execProvider) isConnected(ctx context.Context) (bool, error) {
	if len(p.statusCommand) == 0 {
		return false, fmt.Errorf("vpn status command not configured")
	}
	out, err := exec.CommandContext(ctx, p.statusCommand[0], p.statusCommand[1:]...).Output()
	if err != nil {
		return false, fmt.Errorf("vpn status command: %w", err)
	}
	return strings.Contains(string(out), p.connectionName), nil
}

func (p *execProvider) dial(ctx context.Context) error {
	if len(p.dialCommand) == 0 {
		return fmt.Errorf("vpn dial command not configured")
	}
	args := append(p.dialCommand[1:], p.connectionName)
	if out, err := exec.CommandContext(ctx, p.dialCommand[0], args...).CombinedOutput(); err != nil {
		return fmt.Errorf("vpn dial command: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

type noopProvider struct{}

func (noopProvider) EnsureConnected(context.Context) error { return nil }
