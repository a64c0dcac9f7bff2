// Package logging provides the colored structured log formatter shared by
// every component of the agent.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ColoredJSONFormatter renders logrus entries as human-readable,
// color-coded key=value lines while keeping field values JSON-encoded.
type ColoredJSONFormatter struct {
	// TimestampFormat controls how entry.Time is rendered.
	TimestampFormat string
	// SortingFunc customizes field ordering; defaults to priority sort.
	SortingFunc func([]string) []string
	// DisableColors turns off ANSI color codes (e.g. non-terminal output).
	DisableColors bool
}

// NewColoredJSONFormatter returns a formatter configured with sane defaults.
func NewColoredJSONFormatter() *ColoredJSONFormatter {
	return &ColoredJSONFormatter{
		TimestampFormat: time.RFC3339,
		SortingFunc:     defaultFieldSorting,
	}
}

// Format implements logrus.Formatter.
func (f *ColoredJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(entry.Data)+3)
	for k, v := range entry.Data {
		data[k] = v
	}

	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	data["time"] = entry.Time.Format(f.TimestampFormat)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}

	if f.SortingFunc != nil {
		keys = f.SortingFunc(keys)
	} else {
		sort.Strings(keys)
	}

	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	noColor := f.DisableColors
	levelColor := getLevelColor(entry.Level, noColor)
	timeColor := color.New(color.FgYellow)
	valueColor := color.New(color.FgWhite)
	if noColor {
		timeColor.DisableColor()
		valueColor.DisableColor()
	}

	b.WriteString(timeColor.Sprintf("%s ", data["time"]))
	b.WriteString(levelColor.Sprintf("%-7s ", strings.ToUpper(data["level"].(string))))

	if msg, ok := data["msg"].(string); ok {
		b.WriteString(levelColor.Sprintf("%s", msg))
	}
	b.WriteString(" ")

	for _, k := range keys {
		if k == "time" || k == "level" || k == "msg" {
			continue
		}

		fieldColor := color.New(color.FgCyan)
		if isImportantField(k) {
			fieldColor = color.New(color.FgGreen)
		}
		if noColor {
			fieldColor.DisableColor()
		}

		b.WriteString(fieldColor.Sprintf("%s=", k))
		b.WriteString(valueColor.Sprint(formatValue(data[k])))
		b.WriteString(" ")
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	default:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(jsonBytes)
	}
}

func getLevelColor(level logrus.Level, disable bool) *color.Color {
	var c *color.Color
	switch level {
	case logrus.DebugLevel:
		c = color.New(color.FgBlue)
	case logrus.InfoLevel:
		c = color.New(color.FgGreen)
	case logrus.WarnLevel:
		c = color.New(color.FgYellow)
	case logrus.ErrorLevel:
		c = color.New(color.FgRed)
	case logrus.FatalLevel, logrus.PanicLevel:
		c = color.New(color.FgRed, color.Bold)
	default:
		c = color.New(color.FgWhite)
	}
	if disable {
		c.DisableColor()
	}
	return c
}

func isImportantField(field string) bool {
	important := map[string]bool{
		"tweet_id":        true,
		"conversation_id": true,
		"author_id":       true,
		"action":          true,
		"loop":            true,
		"error":           true,
	}
	return important[field]
}

func defaultFieldSorting(keys []string) []string {
	priority := map[string]int{
		"time":     1,
		"level":    2,
		"msg":      3,
		"loop":     4,
		"action":   5,
		"tweet_id": 6,
		"error":    7,
	}

	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priority[keys[i]], priority[keys[j]]
		if pi != 0 && pj != 0 {
			return pi < pj
		}
		if pi != 0 {
			return true
		}
		if pj != 0 {
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// NewLogger builds a logrus.Logger with the colored formatter and a level
// parsed from levelName, falling back to Info on an invalid or empty level
// name, with a warning when the name is non-empty.
func NewLogger(levelName string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(NewColoredJSONFormatter())

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		if levelName != "" {
			log.WithFields(logrus.Fields{
				"attempted_level": levelName,
				"default_level":   "info",
			}).Warn("invalid log level specified, defaulting to info")
		}
		return log
	}

	log.SetLevel(level)
	return log
}
