// Package netutil binds the HTTP listener to the first free address.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
)

// ErrNoAddr is returned when neither the preferred address nor any candidate
// could be bound.
var ErrNoAddr = errors.New("no available bind addresses")

// Listen binds preferred, or with autoFallback the first free candidate. The
// returned listener is already bound, so the address cannot be taken between
// selection and serving.
func Listen(preferred string, candidates []string, autoFallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := listen(preferred)
		if err == nil {
			return ln, nil
		}
		if !isBusy(err) {
			return nil, err
		}
		if !autoFallback {
			return nil, fmt.Errorf("preferred bind address in use: %s", preferred)
		}
		slog.Warn("preferred bind address in use, trying candidates", "preferred", preferred)
	}

	for _, addr := range candidates {
		if addr == "" || addr == preferred {
			continue
		}
		ln, err := listen(addr)
		if err == nil {
			return ln, nil
		}
		if !isBusy(err) {
			return nil, err
		}
	}
	return nil, ErrNoAddr
}

func listen(addr string) (net.Listener, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid bind address %q: %w", addr, err)
	}
	return net.Listen("tcp", addr)
}

func isBusy(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.EACCES)
}
