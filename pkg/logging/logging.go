// Package logging builds the process-wide logger. Output fans out to any
// combination of stdout, syslog, and a file; the set is chosen once at
// startup and torn down at exit.
package logging

import (
	"io"
	"log/syslog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"

	"github.com/semiotic/agentium/internal/errx"
)

// Config selects the active sinks.
type Config struct {
	Stdout bool
	Syslog bool
	File   string // empty disables the file sink
}

// ParseSinks folds repeated -o values into a Config. Recognized values are
// "stdout", "syslog", and "file:<path>".
func ParseSinks(sinks []string) (Config, error) {
	var cfg Config
	for _, s := range sinks {
		switch {
		case s == "stdout":
			cfg.Stdout = true
		case s == "syslog":
			cfg.Syslog = true
		case strings.HasPrefix(s, "file:"):
			path := strings.TrimPrefix(s, "file:")
			if path == "" {
				return Config{}, errx.With(ErrBadSink, ": file sink needs a path")
			}
			cfg.File = path
		default:
			return Config{}, errx.With(ErrBadSink, ": %q", s)
		}
	}
	return cfg, nil
}

// New builds a logger for cfg. The returned teardown closes whatever the
// sinks opened; call it once at exit.
func New(cfg Config) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetLevel(levelFromEnv())
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var writers []io.Writer
	var closers []io.Closer

	if cfg.Stdout {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, errx.Wrap(ErrOpenLogFile, err)
		}
		writers = append(writers, f)
		closers = append(closers, f)
	}
	if cfg.Syslog {
		hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, "agentiumd")
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, errx.Wrap(ErrOpenSyslog, err)
		}
		log.AddHook(hook)
	}

	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}

	teardown := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	return log, teardown, nil
}

func levelFromEnv() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
