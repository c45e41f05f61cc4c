package kisstransport

import (
	"context"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the conventional DNS-SD service type KISS-over-TCP
// client apps browse for.
const ServiceType = "_kiss-tnc._tcp"

// Announce advertises the KISS TCP listener on port under name via
// mDNS/DNS-SD. It runs the responder in a background goroutine and
// returns immediately; the announcement lasts until process exit.
func Announce(name string, port int, logger *log.Logger) error {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return err
	}
	responder, err := dnssd.NewResponder()
	if err != nil {
		return err
	}
	if _, err := responder.Add(svc); err != nil {
		return err
	}

	logger.Info("dns-sd: announcing KISS TCP", "port", port, "name", name)
	go func() {
		if err := responder.Respond(context.Background()); err != nil {
			logger.Error("dns-sd: responder stopped", "err", err)
		}
	}()
	return nil
}
