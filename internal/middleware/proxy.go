package middleware

import (
	"net"

	"github.com/labstack/echo/v4"
)

// TrustedProxies configures Echo so c.RealIP() reads X-Forwarded-For only
// when the direct peer lies in one of the trusted CIDRs. Rate limiting
// depends on accurate client IPs. Invalid CIDRs are skipped; config.Load
// rejects them first.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	opts := []echo.TrustOption{
		// Only the configured ranges, not echo's default loopback/private trust.
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		opts = append(opts, echo.TrustIPRange(network))
	}
	e.IPExtractor = echo.ExtractIPFromXFFHeader(opts...)
}
