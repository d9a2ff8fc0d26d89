package queue

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger adapts zap to asynq.Logger
type Logger struct {
	s *zap.SugaredLogger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{s: logger.Named("asynq").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *Logger) Debug(args ...interface{}) { l.s.Debug(fmt.Sprint(args...)) }
func (l *Logger) Info(args ...interface{})  { l.s.Info(fmt.Sprint(args...)) }
func (l *Logger) Warn(args ...interface{})  { l.s.Warn(fmt.Sprint(args...)) }
func (l *Logger) Error(args ...interface{}) { l.s.Error(fmt.Sprint(args...)) }
func (l *Logger) Fatal(args ...interface{}) { l.s.Fatal(fmt.Sprint(args...)) }
