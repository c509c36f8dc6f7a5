package logger

import (
	"context"
	"net/netip"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arklim/ecotrack-accounts/internal/infra/config"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process logger. Production uses JSON output; every other env gets
// the colored console encoder. Every entry carries the service name and env.
func New(app config.AppSettings) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if app.Env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.InitialFields = map[string]any{
			"service": app.Name,
			"env":     app.Env,
		}

		lg, err = cfg.Build()
	})

	return lg, err
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// RequestIDFromContext returns the correlation id stored by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey{}).(string)
	return id
}

// MaskEmail keeps up to three characters of the local part and the domain:
// john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***"
	}
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***@" + domain
}

// MaskIdentifier masks a login identifier which may be an email or a username.
func MaskIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return MaskEmail(identifier)
	}
	if len(identifier) <= 2 {
		return "***"
	}
	return identifier[:2] + "***"
}

// MaskIP keeps the network half of an address: two octets for IPv4, four groups for
// IPv6 (192.168.1.100 -> 192.168.*.*).
func MaskIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		if ip == "" {
			return ""
		}
		return "***"
	}

	if addr.Is4() || addr.Is4In6() {
		octets := strings.Split(addr.Unmap().String(), ".")
		return octets[0] + "." + octets[1] + ".*.*"
	}

	groups := strings.Split(ip, ":")
	if len(groups) < 4 {
		return "***"
	}
	return strings.Join(groups[:4], ":") + ":*:*:*:*"
}
