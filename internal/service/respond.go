package service

import (
	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"go.uber.org/zap"
)

// fail reports err to the initiating connection as a flightError. Expected failures
// (validation, authorization, vanished records) log at debug, the rest at error.
func fail(log *zap.Logger, c *realtime.Client, action, flightID string, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("session_id", c.SessionID),
		zap.String("flight_id", flightID),
		zap.String("user_id", c.UserID),
		zap.Error(err),
	}
	if errs.IsBenign(err) {
		log.Debug("action rejected", fields...)
	} else {
		log.Error("action failed", fields...)
	}
	c.Emit(model.EventFlightError, model.FlightError{
		Action:   action,
		FlightID: flightID,
		Error:    errs.Public(err),
	})
}
