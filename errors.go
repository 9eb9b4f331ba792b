package hypersig

import (
	"fmt"
	goLog "log"
)

// ErrorKind tags an Error with one of the kinds from the error handling
// design: configuration, entropy, exhaustion, backup and structural
// failures. VerifyFail is deliberately not a member of this taxonomy: it is
// a boolean outcome returned by Verify*, never an error value.
type ErrorKind int

const (
	// ConfigInvalid: a parameter is out of range, heights is empty, or
	// keyspace_usage would exceed 2^64.
	ConfigInvalid ErrorKind = iota
	// EntropyOverflow: a computed entropy index reached or exceeded 2^64
	// during key construction.
	EntropyOverflow
	// Exhausted: a sign was attempted past MaxIndex, the last valid index.
	Exhausted
	// BackupMismatch: backup fields disagree with the constructor's
	// hashlen/otsbits/heights/seedhash.
	BackupMismatch
	// BackupRollback: backup.idx is ahead of the index the caller asked
	// to restore at. A backup behind that index is accepted.
	BackupRollback
	// StructuralError: malformed signature or backup bytes.
	StructuralError
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case EntropyOverflow:
		return "EntropyOverflow"
	case Exhausted:
		return "Exhausted"
	case BackupMismatch:
		return "BackupMismatch"
	case BackupRollback:
		return "BackupRollback"
	case StructuralError:
		return "StructuralError"
	default:
		return "Unknown"
	}
}

// Error is the interface implemented by every error hypersig returns from
// the kinds above. Kind() lets callers branch on the taxonomy without
// string matching; Inner() exposes a wrapped cause, if any.
type Error interface {
	error
	Kind() ErrorKind
	Inner() error
}

type errorImpl struct {
	kind  ErrorKind
	msg   string
	inner error
}

func (err *errorImpl) Kind() ErrorKind { return err.kind }
func (err *errorImpl) Inner() error    { return err.inner }

func (err *errorImpl) Error() string {
	if err.inner != nil {
		return fmt.Sprintf("%s: %s: %s", err.kind, err.msg, err.inner.Error())
	}
	return fmt.Sprintf("%s: %s", err.kind, err.msg)
}

func errorf(kind ErrorKind, format string, a ...interface{}) *errorImpl {
	return &errorImpl{kind: kind, msg: fmt.Sprintf(format, a...)}
}

func wrapErrorf(kind ErrorKind, err error, format string, a ...interface{}) *errorImpl {
	return &errorImpl{kind: kind, msg: fmt.Sprintf(format, a...), inner: err}
}

// Logger is the injectable logging sink. hypersig logs at most diagnostic
// detail about level-key construction and index advancement; nothing is
// logged by default.
type Logger interface {
	Logf(format string, a ...interface{})
}

type dummyLogger struct{}

func (logger *dummyLogger) Logf(format string, a ...interface{}) {}

type stdlibLogger struct{}

func (logger *stdlibLogger) Logf(format string, a ...interface{}) {
	goLog.Printf(format, a...)
}

var log Logger = &dummyLogger{}

// EnableLogging sends hypersig's diagnostic log lines to the standard
// "log" package. For more control use SetLogger.
func EnableLogging() {
	SetLogger(&stdlibLogger{})
}

// SetLogger installs logger as hypersig's log sink. Passing nil disables
// logging.
func SetLogger(logger Logger) {
	if logger == nil {
		log = &dummyLogger{}
		return
	}
	log = logger
}
