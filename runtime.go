// runtime.go
//
// This file assembles the standard runtime on top of the engine surface in
// interpreter.go: it installs the native builtin families, evaluates the
// embedded prelude into Core, and owns the host-side pieces the builtins
// share (the runtime logger and the opaque handle helpers).

package qi

import (
	_ "embed"
	"os"

	"github.com/sirupsen/logrus"
)

//go:embed prelude.qi
var preludeSource string

// runtimeLog reports host-side incidents that have no user-visible error
// channel: failed defer expressions and crashed goroutines. It stays at warn
// unless QI_DEBUG is set or the embedder raises it.
var runtimeLog = newRuntimeLog()

func newRuntimeLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	if os.Getenv("QI_DEBUG") != "" {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// SetLogLevel adjusts the runtime logger ("debug", "info", "warn", "error").
func SetLogLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	runtimeLog.SetLevel(lv)
	return nil
}

// asHandle unboxes an opaque handle Value, checking the kind tag so natives
// never operate on a foreign module's resources.
func asHandle(v Value, want string) (*Handle, error) {
	if v.Tag != THandle {
		return nil, errf(KindTypeMismatch, "expected %s handle, got %s", want, TypeName(v))
	}
	h := v.Data.(*Handle)
	if h.Kind != want {
		return nil, errf(KindTypeMismatch, "expected %s handle, got %s handle", want, h.Kind)
	}
	return h, nil
}

// setBuiltinDoc records the docstring for a registered native; (doc name)
// and the REPL surface it.
func setBuiltinDoc(ip *Interp, name, doc string) { ip.docs[name] = doc }

// NewRuntime returns a fully-initialized interpreter: all standard natives
// registered and the prelude loaded. Embedders that want a bare engine use
// NewInterp and register their own.
func NewRuntime() *Interp {
	ip := NewInterp()

	registerCoreBuiltins(ip)
	registerStringBuiltins(ip)
	registerEncodingBuiltins(ip)
	registerConcurrencyBuiltins(ip)

	if err := ip.loadPrelude(); err != nil {
		// The prelude ships inside the binary; failing to evaluate it is a
		// build defect, not a runtime condition.
		panic("qi: prelude: " + err.Error())
	}
	return ip
}

// loadPrelude evaluates the embedded prelude directly in Core, beneath
// Global, so user definitions may shadow prelude names without destroying
// them.
func (ip *Interp) loadPrelude() error {
	forms, err := ParseSource(preludeSource)
	if err != nil {
		return err
	}
	_, err = ip.EvalForms(forms, ip.Core)
	return err
}
