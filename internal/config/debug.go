package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

const DefaultDebugAddr = "127.0.0.1:6060"

// DebugAddr returns the configured listen address or the loopback default.
func (d DebugConfig) DebugAddr() string {
	if a := strings.TrimSpace(d.Addr); a != "" {
		return a
	}
	return DefaultDebugAddr
}

func (d DebugConfig) validate() error {
	if _, err := ParseDurationField("debug.read_timeout", d.ReadTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("debug.write_timeout", d.WriteTimeout); err != nil {
		return err
	}
	if d.MutexProfileFraction < 0 || d.BlockProfileRate < 0 {
		return errors.New("debug: profile rates must be >= 0")
	}
	if !d.Enabled {
		return nil
	}
	addr := d.DebugAddr()
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("debug.addr: invalid %q (expected host:port): %w", addr, err)
	}
	if !d.AllowInsecure && strings.TrimSpace(d.Token) == "" && !IsLoopbackAddr(addr) {
		return fmt.Errorf("debug.addr %q: non-loopback bind requires token or allow_insecure", addr)
	}
	return nil
}

// IsLoopbackAddr reports whether the host part of addr is localhost or a
// loopback IP. An empty host (all interfaces) is not loopback.
func IsLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
