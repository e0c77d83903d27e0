package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/core/port"
	"github.com/berfenger/sdibms2mqtt/internal/util/actorutil"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

var (
	ErrReaderStopped = errors.New("frame reader stopped")
	ErrOpenAbandoned = errors.New("frame reader opened after timeout")
)

type FrameReaderProvider func() (sdi_can.FrameReader, error)

// CANBusActor owns the frame reader of one source. Frames are ingested from the reader
// goroutine; the actor only tracks the reader lifecycle and answers health checks.
type CANBusActor struct {
	actorutil.ActorWithStates
	stash *actorutil.Stash

	sourceId         string
	openReader       FrameReaderProvider
	ingestor         port.FrameIngestor
	openTimeout      time.Duration
	connectedTimeout time.Duration

	reader     sdi_can.FrameReader
	cancelRead context.CancelFunc
	lastFrame  atomic.Int64
	frameCount atomic.Uint64

	logger *zap.Logger
}

type readerOpened struct {
	reader sdi_can.FrameReader
}

type readerOpenFailed struct {
	err error
}

type readerStopped struct {
	err error
}

func NewCANBusActor(sourceId string, cfg config.CANConfig, openReader FrameReaderProvider, ingestor port.FrameIngestor, logger *zap.Logger) *CANBusActor {
	act := &CANBusActor{
		stash:            &actorutil.Stash{},
		sourceId:         sourceId,
		openReader:       openReader,
		ingestor:         ingestor,
		openTimeout:      cfg.OpenTimeout(),
		connectedTimeout: cfg.ConnectedTimeout(),
		logger:           actorutil.ActorLogger(domain.CANBusActorId(sourceId), logger),
	}
	act.ActorWithStates = actorutil.NewActorWithStates(canOpeningState{actor: act})
	return act
}

func (state *CANBusActor) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Stopping, *actor.Restarting:
		state.closeReader()
	}
	state.Behavior.Receive(ctx)
}

// Connected reports whether a frame arrived within the connected timeout.
func (state *CANBusActor) Connected(now time.Time) bool {
	last := state.lastFrame.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) <= state.connectedTimeout
}

func (state *CANBusActor) onFrame(frame sdi_can.RawFrame) {
	state.ingestor.Ingest(state.sourceId, frame)
	state.lastFrame.Store(frame.ReceivedAt.UnixNano())
	state.frameCount.Add(1)
}

func (state *CANBusActor) healthResponse(healthy bool) domain.ActorHealthResponse {
	return domain.ActorHealthResponse{
		Id:      domain.CANBusActorId(state.sourceId),
		Healthy: healthy,
		State:   state.StateName(),
	}
}

func (state *CANBusActor) closeReader() {
	if state.cancelRead != nil {
		state.cancelRead()
		state.cancelRead = nil
	}
	if state.reader != nil {
		if err := state.reader.Close(); err != nil {
			state.logger.Debug("canbus: close reader", zap.Error(err))
		}
		state.reader = nil
	}
}

// pendingOpen hands a reader from the open call to the actor. Once the attempt is abandoned
// (open timeout), a reader that arrives later, or one stuck between open and delivery, is closed.
type pendingOpen struct {
	mu        sync.Mutex
	abandoned bool
	reader    sdi_can.FrameReader
	logger    *zap.Logger
}

func (p *pendingOpen) deliver(reader sdi_can.FrameReader) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.abandoned {
		p.close(reader)
		return false
	}
	p.reader = reader
	return true
}

func (p *pendingOpen) abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandoned = true
	if p.reader != nil {
		p.close(p.reader)
		p.reader = nil
	}
}

func (p *pendingOpen) close(reader sdi_can.FrameReader) {
	if err := reader.Close(); err != nil {
		p.logger.Debug("canbus: close abandoned reader", zap.Error(err))
	}
}

type canOpeningState struct {
	actor *CANBusActor
}

func (s canOpeningState) Name() string {
	return "opening"
}

func (s canOpeningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		s.actor.logger.Debug("canbus@opening started")
		pending := &pendingOpen{logger: s.actor.logger}
		task := actorutil.NewBackgroundTask(ctx, func() (*readerOpened, error) {
			reader, err := s.actor.openReader()
			if err != nil {
				return nil, err
			}
			if !pending.deliver(reader) {
				return nil, ErrOpenAbandoned
			}
			return &readerOpened{reader: reader}, nil
		}).OnError(func(err error) {
			pending.abandon()
			ctx.Send(ctx.Self(), readerOpenFailed{err: err})
		})
		if s.actor.openTimeout > 0 {
			task = task.WithTimeout(s.actor.openTimeout)
		}
		task.PipeTo(ctx.Self())
	case readerOpened:
		s.actor.logger.Info("canbus@opening reader opened", zap.String("source", s.actor.sourceId))
		s.actor.Become(canReadingState{actor: s.actor}.OnEnter(ctx, msg.reader))
		s.actor.stash.UnstashAll(ctx)
	case readerOpenFailed:
		// let the supervisor retry with backoff
		s.actor.logger.Error("canbus@opening could not open reader", zap.String("source", s.actor.sourceId), zap.Error(msg.err))
		panic(msg.err)
	case domain.ActorHealthRequest:
		ctx.Respond(s.actor.healthResponse(false))
	case *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		s.actor.logger.Debug("canbus@opening stash", zap.String("type", fmt.Sprintf("%T", msg)))
		s.actor.stash.Stash(ctx, msg)
	}
}

type canReadingState struct {
	actor *CANBusActor
}

func (s canReadingState) Name() string {
	return "reading"
}

func (s canReadingState) OnEnter(ctx actor.Context, reader sdi_can.FrameReader) canReadingState {
	runCtx, cancel := context.WithCancel(context.Background())
	s.actor.reader = reader
	s.actor.cancelRead = cancel

	root := ctx.ActorSystem().Root
	self := ctx.Self()
	go func() {
		err := reader.Run(runCtx, s.actor.onFrame)
		root.Send(self, readerStopped{err: err})
	}()
	return s
}

func (s canReadingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		connected := s.actor.Connected(time.Now())
		s.actor.logger.Debug("canbus@reading ActorHealthRequest",
			zap.Bool("connected", connected),
			zap.Uint64("frames", s.actor.frameCount.Load()))
		ctx.Respond(s.actor.healthResponse(connected))
	case readerStopped:
		if s.actor.cancelRead == nil {
			// closed on purpose
			return
		}
		err := msg.err
		if err == nil {
			err = ErrReaderStopped
		}
		s.actor.logger.Error("canbus@reading reader stopped", zap.String("source", s.actor.sourceId), zap.Error(err))
		panic(err)
	case *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		s.actor.logger.Debug("canbus@reading recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
