// Package eventlog writes logfmt event lines to the process log, an optional
// append-only file, and any attached live stream.
package eventlog

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Broadcaster receives every line written through a Logger.
type Broadcaster interface {
	BroadcastLog(entry string)
}

// Logger provides a single append-only event file shared by all components.
type Logger struct {
	path        string
	file        *os.File
	mutex       sync.Mutex
	broadcaster Broadcaster
}

// New opens path for appending. An empty path yields a logger that only
// broadcasts.
func New(path string) (*Logger, error) {
	logger := &Logger{path: path}
	if strings.TrimSpace(path) == "" {
		return logger, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log '%s': %w", path, err)
	}
	logger.file = f
	return logger, nil
}

func (l *Logger) Path() string { return l.path }

// SetBroadcaster sets the destination for live event streaming.
func (l *Logger) SetBroadcaster(b Broadcaster) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.broadcaster = b
}

// Write appends one entry, adding a trailing newline when missing.
func (l *Logger) Write(entry string) error {
	if l == nil {
		return fmt.Errorf("event log is not initialized")
	}
	entry = strings.TrimRight(entry, "\n")

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.file != nil {
		if _, err := l.file.WriteString(entry + "\n"); err != nil {
			return err
		}
	}
	if l.broadcaster != nil {
		l.broadcaster.BroadcastLog(entry)
	}
	return nil
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}

var (
	defaultMu sync.RWMutex
	defaultLg *Logger
)

// SetDefault routes Emit through l in addition to the process log. Passing
// nil detaches the current logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLg = l
	defaultMu.Unlock()
}

// Emit logs an event line of the form `event=<name> k=v ...`.
func Emit(event string, fields map[string]any) {
	line := Format(event, fields)
	log.Print(line)

	defaultMu.RLock()
	l := defaultLg
	defaultMu.RUnlock()
	if l != nil {
		if err := l.Write(line); err != nil {
			log.Printf("event=eventlog.write error=%q", err.Error())
		}
	}
}

// Format renders fields in key order. Values containing spaces, quotes or
// '=' are quoted.
func Format(event string, fields map[string]any) string {
	var b strings.Builder
	b.WriteString("event=")
	b.WriteString(event)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(fields[k]))
	}
	return b.String()
}

func formatValue(v any) string {
	var s string
	switch typed := v.(type) {
	case nil:
		return `""`
	case error:
		s = typed.Error()
	case string:
		s = typed
	default:
		s = fmt.Sprint(typed)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// Parse splits a logfmt line into its fields. Quoted values are unquoted.
func Parse(line string) map[string]string {
	out := make(map[string]string)
	i := 0
	for i < len(line) {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		start := i
		for i < len(line) && line[i] != '=' && line[i] != ' ' {
			i++
		}
		key := line[start:i]
		if i >= len(line) || line[i] != '=' {
			if key != "" {
				out[key] = ""
			}
			continue
		}
		i++
		var value string
		if i < len(line) && line[i] == '"' {
			end := i + 1
			for end < len(line) {
				if line[end] == '\\' {
					end += 2
					continue
				}
				if line[end] == '"' {
					break
				}
				end++
			}
			if end >= len(line) {
				end = len(line) - 1
			}
			raw := line[i : end+1]
			if unq, err := strconv.Unquote(raw); err == nil {
				value = unq
			} else {
				value = strings.Trim(raw, `"`)
			}
			i = end + 1
		} else {
			start := i
			for i < len(line) && line[i] != ' ' {
				i++
			}
			value = line[start:i]
		}
		if key != "" {
			out[key] = value
		}
	}
	return out
}
