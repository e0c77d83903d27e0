package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_AGGREGATOR   = "aggregator"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
	ACTOR_ID_CANBUS       = "canbus"
)

// CANBusActorId is the child name of the bus actor reading one source.
func CANBusActorId(sourceId string) string {
	return ACTOR_ID_CANBUS + "_" + sourceId
}

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	Buttons []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type GetAggregatedStateRequest struct {
	ActorRequestMixIn
}

type GetAggregatedStateResponse struct {
	ActorResponseMixIn
	// nil until the first aggregation with live sources
	State   *AggregatedState
	Sources []SourceState
}

type RemoveSourceRequest struct {
	ActorRequestMixIn
	SourceId string
}

type RemoveSourceResponse struct {
	ActorResponseMixIn
	Removed bool
}
