package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	defaultFieldSeparator  = " | "
	defaultTimestampFormat = "2006-01-02 15:04:05"

	colorReset  = 0
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 36
	colorGray   = 37
)

// LevelNameDisplay controls which entries carry a [LEVEL] tag.
type LevelNameDisplay int

const (
	ShowAll LevelNameDisplay = iota
	ShowAboveWarn
	ShowAboveError
	HideAll
)

// Formatter renders "time [LEVL] [Project:x | Build:y | Task:a/b] message (file:line func)".
// Fields named in FieldOrder come first, the rest follow alphabetically.
type Formatter struct {
	TimestampFormat  string
	DisableTimestamp bool
	NoColors         bool
	DisplayLevelName LevelNameDisplay
	FieldOrder       []string
	FieldSeparator   string
	DisableCaller    bool
	// MaxFieldValueLength truncates long values, 0 keeps them whole.
	MaxFieldValueLength int
	CallerFormatter     func(*runtime.Frame) string
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}

	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = defaultTimestampFormat
		}
		b.WriteString(entry.Time.Format(layout))
		b.WriteByte(' ')
	}

	if f.showLevel(entry.Level) {
		lvl := strings.ToUpper(entry.Level.String())
		if len(lvl) > 4 {
			lvl = lvl[:4]
		}
		if f.NoColors {
			fmt.Fprintf(b, "[%s] ", lvl)
		} else {
			fmt.Fprintf(b, "\x1b[%dm[%s]\x1b[%dm ", levelColor(entry.Level), lvl, colorReset)
		}
	}

	if len(entry.Data) > 0 {
		sep := f.FieldSeparator
		if sep == "" {
			sep = defaultFieldSeparator
		}
		b.WriteByte('[')
		for i, key := range f.orderedKeys(entry.Data) {
			if i > 0 {
				b.WriteString(sep)
			}
			f.writeField(b, key, entry.Data[key])
		}
		b.WriteString("] ")
	}

	b.WriteString(entry.Message)

	if !f.DisableCaller && entry.HasCaller() {
		b.WriteByte(' ')
		if f.CallerFormatter != nil {
			b.WriteString(f.CallerFormatter(entry.Caller))
		} else {
			fn := filepath.Base(entry.Caller.Function)
			if i := strings.LastIndex(fn, "."); i >= 0 {
				fn = fn[i+1:]
			}
			fmt.Fprintf(b, "(%s:%d %s)", filepath.Base(entry.Caller.File), entry.Caller.Line, fn)
		}
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *Formatter) showLevel(l logrus.Level) bool {
	switch f.DisplayLevelName {
	case ShowAboveWarn:
		return l <= logrus.WarnLevel
	case ShowAboveError:
		return l <= logrus.ErrorLevel
	case HideAll:
		return false
	default:
		return true
	}
}

func (f *Formatter) orderedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	placed := make(map[string]bool, len(f.FieldOrder))
	for _, k := range f.FieldOrder {
		if _, ok := data[k]; ok && !placed[k] {
			keys = append(keys, k)
			placed[k] = true
		}
	}
	rest := make([]string, 0, len(data)-len(keys))
	for k := range data {
		if !placed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func (f *Formatter) writeField(b *bytes.Buffer, key string, value interface{}) {
	s := fmt.Sprintf("%v", value)
	if f.MaxFieldValueLength > 0 && len(s) > f.MaxFieldValueLength {
		s = s[:f.MaxFieldValueLength] + "..."
	}
	fmt.Fprintf(b, "%s:%s", key, s)
}

func levelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel:
		return colorBlue
	case logrus.WarnLevel:
		return colorYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorRed
	default:
		return colorGray
	}
}
