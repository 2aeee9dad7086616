package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
)

const logFileName = "build.log"

// Log is the process wide logger used by the command line entry point.
var Log = Discard()

// Options configures a Logger.
type Options struct {
	// Level is parsed with logrus.ParseLevel. Empty means info.
	Level string
	// Verbose forces debug level and shows every level tag.
	Verbose bool
	// OutputPath is a directory. When set, entries go to a daily rotated
	// build.log there instead of the console.
	OutputPath string
	NoColors   bool
	// MaxAge is how long rotated files are kept. Zero means seven days.
	MaxAge time.Duration
	// Out receives console output. Defaults to os.Stdout.
	Out io.Writer
}

// Logger is a logrus logger configured for build output.
type Logger struct {
	*logrus.Logger
}

// New creates a Logger from opts.
func New(opts Options) (*Logger, error) {
	l := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = parsed
	}
	if opts.Verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	display := ShowAboveWarn
	if opts.Verbose {
		display = ShowAll
	}

	if opts.OutputPath == "" {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		l.SetOutput(out)
		l.SetFormatter(&Formatter{
			TimestampFormat:  "15:04:05",
			NoColors:         opts.NoColors,
			DisplayLevelName: display,
			FieldOrder:       common.LogFieldOrder,
			DisableCaller:    true,
		})
		return &Logger{Logger: l}, nil
	}

	if err := os.MkdirAll(opts.OutputPath, common.FileMode0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log output directory %s", opts.OutputPath)
	}
	path := filepath.Join(opts.OutputPath, logFileName)
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	writer, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize log rotation for %s", path)
	}

	fileFormatter := &Formatter{
		TimestampFormat:  "2006-01-02 15:04:05.000 MST",
		NoColors:         true,
		DisplayLevelName: ShowAll,
		FieldOrder:       common.LogFieldOrder,
		CallerFormatter: func(frame *runtime.Frame) string {
			return fmt.Sprintf("[%s:%d]", filepath.Base(frame.File), frame.Line)
		},
	}
	l.SetReportCaller(true)
	l.SetFormatter(fileFormatter)

	writers := lfshook.WriterMap{}
	for _, lvl := range logrus.AllLevels {
		if l.IsLevelEnabled(lvl) {
			writers[lvl] = writer
		}
	}
	l.Hooks.Add(lfshook.NewHook(writers, fileFormatter))
	// The hook owns file output.
	l.SetOutput(io.Discard)

	return &Logger{Logger: l}, nil
}

// Init replaces the global Log.
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// ForProject returns an entry carrying the project and build fields.
func (l *Logger) ForProject(project, buildID string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		common.ProjectName: project,
		common.BuildID:     buildID,
	})
}

// ForTask returns an entry carrying the task field.
func (l *Logger) ForTask(path string) *logrus.Entry {
	return l.WithField(common.TaskName, path)
}
