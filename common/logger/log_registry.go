package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultLogLevel = logrus.InfoLevel

var levelMap = map[string]logrus.Level{
	"trace":   logrus.TraceLevel,
	"debug":   logrus.DebugLevel,
	"info":    logrus.InfoLevel,
	"warning": logrus.WarnLevel,
	"error":   logrus.ErrorLevel,
	"fatal":   logrus.FatalLevel,
	"panic":   logrus.PanicLevel,
}

// LogLevelConfig is a comma separated list of subsystem=level pairs, e.g.
// "AuthorizationService=debug,GrantStore=trace".
type LogLevelConfig string

// LogRegistry tracks the loggers handed out per subsystem and the level each
// subsystem should log at.
type LogRegistry struct {
	loggerBySubsystem map[string]*logrus.Logger
	levelBySubsystem  map[string]logrus.Level
	loggersMu         sync.Mutex
}

// ListLogLevels returns a comma separated string listing valid log levels.
func ListLogLevels() string {
	names := make([]string, 0, len(levelMap))
	for name := range levelMap {
		names = append(names, fmt.Sprintf("%q", name))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func NewLogRegistry(config LogLevelConfig) (*LogRegistry, error) {
	r := &LogRegistry{
		loggerBySubsystem: make(map[string]*logrus.Logger),
		levelBySubsystem:  make(map[string]logrus.Level),
	}
	if config == "" {
		return r, nil
	}
	for _, pair := range strings.Split(string(config), ",") {
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("error invalid log level format: %v", pair)
		}
		level, ok := levelMap[parts[1]]
		if !ok {
			return nil, fmt.Errorf("error invalid log level for %q: %v (valid levels: %s)", parts[0], parts[1], ListLogLevels())
		}
		r.levelBySubsystem[parts[0]] = level
	}
	return r, nil
}

// GetLogLevel returns the configured log level for the specified subsystem.
func (r *LogRegistry) GetLogLevel(subsystem string) logrus.Level {
	r.loggersMu.Lock()
	defer r.loggersMu.Unlock()
	level, ok := r.levelBySubsystem[subsystem]
	if !ok {
		return defaultLogLevel
	}
	return level
}

// SetLogLevel changes the level for a subsystem and applies it to any logger
// already handed out for it.
func (r *LogRegistry) SetLogLevel(subsystem string, level logrus.Level) {
	r.loggersMu.Lock()
	defer r.loggersMu.Unlock()
	r.levelBySubsystem[subsystem] = level
	if logger, ok := r.loggerBySubsystem[subsystem]; ok {
		logger.SetLevel(level)
	}
}

// RegisterLogger records a logger against its subsystem so later level
// changes can reach it.
func (r *LogRegistry) RegisterLogger(subsystem string, logger *logrus.Logger) {
	r.loggersMu.Lock()
	defer r.loggersMu.Unlock()
	r.loggerBySubsystem[subsystem] = logger
}
