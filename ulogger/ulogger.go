package ulogger

const (
	colorBlack = iota + 30
	colorRed
	colorGreen
	colorYellow
	colorBlue
	colorMagenta
	colorCyan
	colorWhite

	colorBold     = 1
	colorDarkGray = 90
)

// Logger is the logging surface every node subsystem is constructed with.
type Logger interface {
	LogLevel() int
	SetLogLevel(level string)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	New(service string, options ...Option) Logger
	Duplicate(options ...Option) Logger
}

// New builds a Logger for service. Only the zerolog-backed implementation
// is wired in this core; the teacher's gocore/file variants are out of
// scope (no CLI/config-loading surface here, see SPEC_FULL.md §1).
func New(service string, options ...Option) Logger {
	return NewZeroLogger(service, options...)
}
