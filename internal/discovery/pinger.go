package discovery

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Pinger reports whether a host answers an ICMP echo within the timeout.
type Pinger interface {
	Ping(ctx context.Context, ip string) bool
}

// ICMPPinger probes hosts with a single ICMP echo.
type ICMPPinger struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewICMPPinger creates an ICMPPinger with the given per-host timeout.
func NewICMPPinger(timeout time.Duration, logger *zap.Logger) *ICMPPinger {
	return &ICMPPinger{timeout: timeout, logger: logger}
}

// Ping sends a single echo request and reports whether a reply arrived.
func (p *ICMPPinger) Ping(ctx context.Context, ip string) bool {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("ip", ip), zap.Error(err))
		return false
	}

	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("ip", ip), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return false
	}

	return pinger.Statistics().PacketsRecv > 0
}
