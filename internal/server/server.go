package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

const (
	HEALTH_CHECK_TIMEOUT = 10 * time.Second
	ACTOR_QUERY_TIMEOUT  = 5 * time.Second
)

// Server exposes the master actor over HTTP. Every handler is a request/response round trip
// to the master.
type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *http.Server {
	apiServer := &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		httpLog:     cfg.HttpLog,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", apiServer.port),
		Handler:      apiServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *Server) requestMaster(msg any, timeout time.Duration) (any, error) {
	return s.rootContext.RequestFuture(s.masterActor, msg, timeout).Result()
}
