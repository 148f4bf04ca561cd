package internal

import (
	"fmt"
	"log"
	"paygate/entity"
	"paygate/services"
	"time"
)

const (
	levelDebug = "debug"
	levelInfo  = "info"
	levelWarn  = "warn"
	levelError = "error"
)

// Logger writes to the process log and, when a database is set, mirrors
// info and above to it.
type Logger struct {
	category string
	debug    bool
	database services.Database
}

func NewLogger(category string, debug bool, database services.Database) *Logger {
	return &Logger{
		category: category,
		debug:    debug,
		database: database,
	}
}

func (l *Logger) Debug(text string) {
	if !l.debug {
		return
	}
	l.write(levelDebug, text, nil)
}

func (l *Logger) Info(text string) {
	l.write(levelInfo, text, nil)
}

func (l *Logger) Warn(text string) {
	l.write(levelWarn, text, nil)
}

func (l *Logger) Error(text string, err error) {
	l.write(levelError, text, err)
}

func (l *Logger) write(level, text string, err error) {
	line := fmt.Sprintf("%s: %s: %s", level, l.category, text)
	if err != nil {
		line = fmt.Sprintf("%s; %v", line, err)
	}
	log.Println(line)

	if l.database == nil || level == levelDebug {
		return
	}
	message := &entity.LogMessage{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Text:     text,
	}
	if err != nil {
		message.Error = err.Error()
	}
	if e := l.database.WriteLogMessage(message); e != nil {
		log.Println("write log message:", e)
	}
}

func secret(some string) string {
	if len(some) > 5 {
		return fmt.Sprintf("%s***", some[0:5])
	}
	if some == "" {
		return "?"
	}
	return "***"
}
