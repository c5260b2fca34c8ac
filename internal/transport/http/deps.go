package http

import (
	"net/http"

	jwtinfra "github.com/go-read-marker/internal/infrastructure/jwt"
	"github.com/go-read-marker/internal/transport/http/handler"
	"go.uber.org/zap"
)

// ControlService is what the control surface needs from the reconciler.
type ControlService interface {
	handler.WindowService
	handler.StatusService
}

// Deps holds the collaborators the router wires into handlers.
type Deps struct {
	Service ControlService
	// JWTProvider guards every route but the health check. Nil leaves the
	// control surface open, which is only sensible on a loopback listener.
	JWTProvider *jwtinfra.Provider
	// Ready reports whether the event stream is connected.
	Ready func() bool
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}
