package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

const (
	debugHeader = "[DEBUG]"
	infoHeader  = "[INFO]"
	warnHeader  = "[WARN]"
	errorHeader = "[ERROR]"
)

func init() {
	Global = registerSubLogger("LOG")
	Backtest = registerSubLogger("BACKTEST")
	Portfolio = registerSubLogger("PORTFOLIO")
	Strategy = registerSubLogger("STRATEGY")
	Statistics = registerSubLogger("STATISTICS")
	Data = registerSubLogger("DATA")
	Config = registerSubLogger("CONFIG")
}

func registerSubLogger(name string) *SubLogger {
	sl := &SubLogger{
		name:   strings.ToUpper(name),
		levels: Levels{Info: true, Warn: true, Error: true},
		output: os.Stdout,
	}
	subLoggers[sl.name] = sl
	return sl
}

// NewSubLogger allows external packages to create loggers for their own
// subsystems. Duplicate names are rejected
func NewSubLogger(name string) (*SubLogger, error) {
	if name == "" {
		return nil, errEmptyLoggerName
	}
	name = strings.ToUpper(name)
	mu.Lock()
	defer mu.Unlock()
	if _, ok := subLoggers[name]; ok {
		return nil, fmt.Errorf("'%v' %w", name, errSubLoggerAlreadyRegistered)
	}
	return registerSubLogger(name), nil
}

// SetOutput redirects a sublogger's output away from stdout
func (sl *SubLogger) SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sl.output = w
}

// SetLevels overrides which levels a sublogger emits
func (sl *SubLogger) SetLevels(l Levels) {
	mu.Lock()
	defer mu.Unlock()
	sl.levels = l
}

func (sl *SubLogger) stage(header, data string) {
	if sl == nil {
		return
	}
	log.New(sl.output, "", log.LstdFlags|log.LUTC).
		Printf("%s %s %s", header, sl.name, data)
}

// Info takes a pointer sublogger struct and string, sends to the log output
func Info(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Info {
		return
	}
	sl.stage(infoHeader, data)
}

// Infoln takes a pointer sublogger struct and interface, sends to the log output
func Infoln(sl *SubLogger, v ...any) {
	Info(sl, fmt.Sprintln(v...))
}

// Infof takes a pointer sublogger struct, string and interface, formats
// and sends to the log output
func Infof(sl *SubLogger, data string, v ...any) {
	Info(sl, fmt.Sprintf(data, v...))
}

// Debug takes a pointer sublogger struct and string, sends to the log output
func Debug(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Debug {
		return
	}
	sl.stage(debugHeader, data)
}

// Debugf takes a pointer sublogger struct, string and interface, formats
// and sends to the log output
func Debugf(sl *SubLogger, data string, v ...any) {
	Debug(sl, fmt.Sprintf(data, v...))
}

// Warn takes a pointer sublogger struct and string, sends to the log output
func Warn(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Warn {
		return
	}
	sl.stage(warnHeader, data)
}

// Warnf takes a pointer sublogger struct, string and interface, formats
// and sends to the log output
func Warnf(sl *SubLogger, data string, v ...any) {
	Warn(sl, fmt.Sprintf(data, v...))
}

// Error takes a pointer sublogger struct and string, sends to the log output
func Error(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Error {
		return
	}
	sl.stage(errorHeader, data)
}

// Errorf takes a pointer sublogger struct, string and interface, formats
// and sends to the log output
func Errorf(sl *SubLogger, data string, v ...any) {
	Error(sl, fmt.Sprintf(data, v...))
}
