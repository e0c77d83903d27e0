package server

import (
	"net/http"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type sourceResponse struct {
	Id                    string             `json:"id"`
	Name                  string             `json:"name,omitempty"`
	Capacity              float64            `json:"capacity"`
	Voltage               *float64           `json:"voltage,omitempty"`
	Current               *float64           `json:"current,omitempty"`
	Soc                   *float64           `json:"soc,omitempty"`
	Soh                   *float64           `json:"soh,omitempty"`
	Temperature           *float64           `json:"temperature,omitempty"`
	ChargeCurrentLimit    *float64           `json:"charge_current_limit,omitempty"`
	DischargeCurrentLimit *float64           `json:"discharge_current_limit,omitempty"`
	MaxChargeCurrent      *float64           `json:"max_charge_current,omitempty"`
	AlarmBits             *uint8             `json:"alarm_bits,omitempty"`
	ProtectionBits        *uint8             `json:"protection_bits,omitempty"`
	Signals               map[string]float64 `json:"signals"`
	LastUpdate            time.Time          `json:"last_update"`
}

type aggregatedResponse struct {
	Voltage               float64            `json:"voltage"`
	Current               float64            `json:"current"`
	Power                 float64            `json:"power"`
	Soc                   float64            `json:"soc"`
	Capacity              float64            `json:"capacity"`
	Temperature           float64            `json:"temperature"`
	ChargeCurrentLimit    float64            `json:"charge_current_limit"`
	DischargeCurrentLimit float64            `json:"discharge_current_limit"`
	ConsumedAmphours      float64            `json:"consumed_amphours"`
	AnySourceNearFull     bool               `json:"any_source_near_full"`
	SourceCount           int                `json:"source_count"`
	SourceSocs            map[string]float64 `json:"source_socs"`
}

type stateResponse struct {
	Battery aggregatedResponse `json:"battery"`
	Sources []sourceResponse   `json:"sources"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/state", s.StateHandler)
	e.DELETE("/sources/:id", s.RemoveSourceHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.ActorHealthRequest{}, HEALTH_CHECK_TIMEOUT)
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StateHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.GetAggregatedStateRequest{}, ACTOR_QUERY_TIMEOUT)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetAggregatedStateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.State == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no aggregated state yet")
	}
	return c.JSON(http.StatusOK, toStateResponse(response))
}

func (s *Server) RemoveSourceHandler(c echo.Context) error {
	id := c.Param("id")
	res, err := s.requestMaster(domain.RemoveSourceRequest{SourceId: id}, ACTOR_QUERY_TIMEOUT)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if response, ok := res.(domain.RemoveSourceResponse); ok && response.Removed {
		return c.NoContent(http.StatusNoContent)
	}
	return echo.NewHTTPError(http.StatusNotFound, "unknown source "+id)
}

func toStateResponse(res domain.GetAggregatedStateResponse) stateResponse {
	st := res.State
	out := stateResponse{
		Battery: aggregatedResponse{
			Voltage:               st.Voltage,
			Current:               st.Current,
			Power:                 st.Power,
			Soc:                   st.Soc,
			Capacity:              st.Capacity,
			Temperature:           st.Temperature,
			ChargeCurrentLimit:    st.ChargeCurrentLimit,
			DischargeCurrentLimit: st.DischargeCurrentLimit,
			ConsumedAmphours:      st.ConsumedAmphours,
			AnySourceNearFull:     st.AnySourceNearFull,
			SourceCount:           st.SourceCount,
			SourceSocs:            st.SourceSocs,
		},
		Sources: make([]sourceResponse, 0, len(res.Sources)),
	}
	for _, src := range res.Sources {
		out.Sources = append(out.Sources, sourceResponse{
			Id:                    src.SourceId,
			Name:                  src.Name,
			Capacity:              src.Capacity,
			Voltage:               src.Voltage,
			Current:               src.Current,
			Soc:                   src.Soc,
			Soh:                   src.Soh,
			Temperature:           src.Temperature,
			ChargeCurrentLimit:    src.ChargeCurrentLimit,
			DischargeCurrentLimit: src.DischargeCurrentLimit,
			MaxChargeCurrent:      src.MaxChargeCurrent,
			AlarmBits:             src.AlarmBits,
			ProtectionBits:        src.ProtectionBits,
			Signals:               src.Signals,
			LastUpdate:            src.LastUpdate,
		})
	}
	return out
}
