package logger

import (
	"io"
	"log"
	"os"
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	prefix string
	level  Level
	output io.Writer
}

func New(prefix string, level Level) *Logger {
	return &Logger{
		prefix: prefix,
		level:  level,
		output: os.Stdout,
	}
}

func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

func (l *Logger) logf(tag, format string, args ...any) {
	log.New(l.output, l.prefix+tag+" ", log.LstdFlags).Printf(format, args...)
}

func (l *Logger) logln(tag string, args ...any) {
	log.New(l.output, l.prefix+tag+" ", log.LstdFlags).Println(args...)
}

func (l *Logger) Debug(args ...any) {
	if l.level <= DEBUG {
		l.logln("[DEBUG]", args...)
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.level <= DEBUG {
		l.logf("[DEBUG]", format, args...)
	}
}

func (l *Logger) Info(args ...any) {
	if l.level <= INFO {
		l.logln("[INFO]", args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l.level <= INFO {
		l.logf("[INFO]", format, args...)
	}
}

func (l *Logger) Warn(args ...any) {
	if l.level <= WARN {
		l.logln("[WARN]", args...)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	if l.level <= WARN {
		l.logf("[WARN]", format, args...)
	}
}

func (l *Logger) Error(args ...any) {
	if l.level <= ERROR {
		l.logln("[ERROR]", args...)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	if l.level <= ERROR {
		l.logf("[ERROR]", format, args...)
	}
}

func (l *Logger) Fatal(args ...any) {
	log.New(l.output, l.prefix+"[FATAL] ", log.LstdFlags).Fatalln(args...)
}

func (l *Logger) Fatalf(format string, args ...any) {
	log.New(l.output, l.prefix+"[FATAL] ", log.LstdFlags).Fatalf(format, args...)
}

func (l *Logger) Sub(module string) waLog.Logger {
	return &WhatsAppLogger{
		logger: &Logger{
			prefix: l.prefix + "[" + module + "] ",
			level:  l.level,
			output: l.output,
		},
	}
}

// WhatsAppLogger adapta Logger para a interface de log do whatsmeow.
type WhatsAppLogger struct {
	logger *Logger
}

func (w *WhatsAppLogger) Debugf(format string, args ...any) {
	w.logger.Debugf(format, args...)
}

func (w *WhatsAppLogger) Infof(format string, args ...any) {
	w.logger.Infof(format, args...)
}

func (w *WhatsAppLogger) Warnf(format string, args ...any) {
	w.logger.Warnf(format, args...)
}

func (w *WhatsAppLogger) Errorf(format string, args ...any) {
	w.logger.Errorf(format, args...)
}

func (w *WhatsAppLogger) Sub(module string) waLog.Logger {
	return w.logger.Sub(module)
}

func NewWhatsAppLogger(prefix string, level Level) waLog.Logger {
	return &WhatsAppLogger{
		logger: New(prefix, level),
	}
}
