package refsingleton

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/imdario/mergo"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// Logger is the fallback logger for singletons and resources built without
// an explicit one.
var Logger = zap.NewNop()

// SetLogger replaces the fallback logger. Singletons created before the call
// keep the logger they were built with.
func SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	Logger = log
}

type llogger struct {
	log    *zap.SugaredLogger
	fields watermill.LogFields
}

// WatermillLogger adapts a zap logger to watermill, so pubsub resources log
// to the same sink as their singleton.
func WatermillLogger(log *zap.Logger) watermill.LoggerAdapter {
	if log == nil {
		log = Logger
	}

	return &llogger{
		log: log.Sugar(),
	}
}

func (log *llogger) fieldsArgs(fields watermill.LogFields) []interface{} {
	var (
		args []interface{}
		m    = make(map[string]interface{})
	)

	if len(log.fields) > 0 {
		copier.Copy(&m, log.fields)
	}

	mergo.Map(&m, fields, mergo.WithOverride)

	for key, field := range m {
		args = append(args, key, field)
	}

	return args
}

func (log *llogger) Error(msg string, err error, fields watermill.LogFields) {
	log.log.Errorw(msg, append(log.fieldsArgs(fields), "error", err)...)
}

func (log *llogger) Info(msg string, fields watermill.LogFields) {
	log.log.Infow(msg, log.fieldsArgs(fields)...)
}

func (log *llogger) Debug(msg string, fields watermill.LogFields) {
	log.log.Debugw(msg, log.fieldsArgs(fields)...)
}

func (log *llogger) Trace(msg string, fields watermill.LogFields) {
	log.log.Debugw(msg, log.fieldsArgs(fields)...)
}

func (log *llogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(log.fields)+len(fields))
	for k, v := range log.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &llogger{
		log:    log.log,
		fields: merged,
	}
}
