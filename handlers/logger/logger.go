// Package logger is a handler that emits logs
package logger

import (
	"crypto/tls"

	"github.com/apex/log"
	"github.com/ooni/tlsadapter/model"
)

var (
	tlsVersion = map[uint16]string{
		tls.VersionSSL30: "SSLv3",
		tls.VersionTLS10: "TLSv1",
		tls.VersionTLS11: "TLSv1.1",
		tls.VersionTLS12: "TLSv1.2",
		tls.VersionTLS13: "TLSv1.3",
	}
)

// Handler is a handler that logs events.
type Handler struct {
	logger log.Interface
}

// NewHandler returns a new logging handler.
func NewHandler(logger log.Interface) *Handler {
	return &Handler{logger: logger}
}

// OnMeasurement logs the specific measurement
func (h *Handler) OnMeasurement(m model.Measurement) {
	// DNS
	if m.Resolve != nil {
		h.logger.WithFields(log.Fields{
			"addresses":  m.Resolve.Addresses,
			"blockedFor": m.Resolve.Duration,
			"cached":     m.Resolve.Cached,
			"elapsed":    m.Resolve.Time,
			"error":      m.Resolve.Error,
			"hostname":   m.Resolve.Hostname,
		}).Debug("dns: resolution done")
	}

	// Raw stream
	if m.Connect != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor":    m.Connect.Duration,
			"connID":        m.Connect.ConnID,
			"elapsed":       m.Connect.Time,
			"error":         m.Connect.Error,
			"network":       m.Connect.Network,
			"remoteAddress": m.Connect.RemoteAddress,
		}).Debug("net: connect done")
	}

	// TLS
	if m.TLSHandshakeStart != nil {
		h.logger.WithFields(log.Fields{
			"alpn":       m.TLSHandshakeStart.Config.NextProtos,
			"authMode":   m.TLSHandshakeStart.Config.AuthMode,
			"connID":     m.TLSHandshakeStart.ConnID,
			"elapsed":    m.TLSHandshakeStart.Time,
			"serverName": m.TLSHandshakeStart.Config.ServerName,
		}).Debug("tls: start handshake")
	}
	if m.TLSHandshakeDone != nil {
		h.logger.WithFields(log.Fields{
			"alpn":        m.TLSHandshakeDone.ConnectionState.NegotiatedProtocol,
			"blockedFor":  m.TLSHandshakeDone.Duration,
			"connID":      m.TLSHandshakeDone.ConnID,
			"elapsed":     m.TLSHandshakeDone.Time,
			"error":       m.TLSHandshakeDone.Error,
			"verifyError": m.TLSHandshakeDone.VerifyError,
			"version":     tlsVersion[m.TLSHandshakeDone.ConnectionState.Version],
		}).Debug("tls: handshake done")
	}

	// Encrypted stream
	if m.Read != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Read.Duration,
			"connID":     m.Read.ConnID,
			"elapsed":    m.Read.Time,
			"error":      m.Read.Error,
			"numBytes":   m.Read.NumBytes,
		}).Debug("tls: read done")
	}
	if m.Write != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Write.Duration,
			"connID":     m.Write.ConnID,
			"elapsed":    m.Write.Time,
			"error":      m.Write.Error,
			"numBytes":   m.Write.NumBytes,
		}).Debug("tls: write done")
	}
	if m.Close != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Close.Duration,
			"connID":     m.Close.ConnID,
			"elapsed":    m.Close.Time,
			"error":      m.Close.Error,
		}).Debug("tls: close done")
	}
}
