package app

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNoClientIP is returned when the caller's IP address is unknown or malformed.
	ErrNoClientIP = errors.New("no client IP")
	// ErrIPNotInSubnet is returned when the caller is outside the trusted subnet.
	ErrIPNotInSubnet = errors.New("IP not in trusted subnet")
)

// CheckTrustedSubnet reports whether clientIP may use the API.
// Without a configured trusted subnet every caller is allowed.
// clientIP may carry a port, as peer addresses do.
func (s *IssuerService) CheckTrustedSubnet(clientIP string) error {
	if s.Cfg.TrustedSubnet == "" {
		return nil
	}

	_, ipNet, err := net.ParseCIDR(s.Cfg.TrustedSubnet)
	if err != nil {
		return fmt.Errorf("invalid trusted subnet %q: %w", s.Cfg.TrustedSubnet, err)
	}

	clientIP = strings.TrimSpace(clientIP)
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		clientIP = host
	}
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return ErrNoClientIP
	}

	if !ipNet.Contains(ip) {
		return ErrIPNotInSubnet
	}
	return nil
}
