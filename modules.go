// modules.go — file-backed modules.
//
// A module is an ordinary Qi file. (import "spec") resolves the file, runs it
// in a fresh root frame parented to Core, and hands back a map of everything
// the file defined, keyed by keywords in definition order:
//
//	(def m (import "geometry"))   ; loads geometry.qi
//	((get m :area) 3 4)
//
// Resolution tries the importing file's directory, then the working
// directory, then each root on the QIPATH list. A spec without an extension
// gets ".qi" appended (the bare spec is tried second). The canonical cache
// key is the cleaned absolute path, so one file is one module no matter how
// many spellings reach it.
//
// Only successful loads are cached. The cache and the in-flight stack share
// the interpreter's module lock, so goroutines may import concurrently;
// importing a module that is currently mid-load reports a cycle chain like
//
//	import cycle: a -> b -> a
//
// which also covers the cross-goroutine race on a module still loading.
// Module frames are parented to Core, not Global, so a module never sees the
// importer's definitions.

package qi

import (
	"os"
	"path/filepath"
	"strings"
)

// QIPathEnv names the environment variable listing extra module roots,
// separated like PATH.
const QIPathEnv = "QIPATH"

const moduleExt = ".qi"

// moduleRec is one cache slot, keyed by canonical path. loading guards the
// window between claiming the slot and committing exports.
type moduleRec struct {
	path    string
	exports Value
	loading bool
}

// evalImport implements the import special form. The spec form is evaluated,
// so computed module names work.
func (ip *Interp) evalImport(args *Cell, env *Env) (Value, error) {
	items := cellSlice(args)
	if len(items) != 1 {
		return Value{}, errf(KindSyntax, "import takes exactly one module spec")
	}
	spec, err := ip.evalValue(items[0], env)
	if err != nil {
		return Value{}, err
	}
	if spec.Tag != TString {
		return Value{}, errf(KindTypeMismatch, "import spec must be a string, got %s", TypeName(spec))
	}
	return ip.importModule(spec.Data.(string))
}

// ImportModule loads the module named by spec exactly as the import form
// does, resolving relative to the current load context. Embedders use this
// to preload modules before running user code.
func (ip *Interp) ImportModule(spec string) (Value, error) {
	return ip.importModule(spec)
}

func (ip *Interp) importModule(spec string) (Value, error) {
	canon, err := resolveModule(spec, ip.currentImporter())
	if err != nil {
		return Value{}, err
	}

	ip.modMu.Lock()
	if rec, ok := ip.modules[canon]; ok {
		if rec.loading {
			chain := cycleChain(ip.loadStack, canon)
			ip.modMu.Unlock()
			return Value{}, errf(KindNative, "import cycle: %s", chain)
		}
		ip.modMu.Unlock()
		return rec.exports, nil
	}
	rec := &moduleRec{path: canon, loading: true}
	ip.modules[canon] = rec
	ip.loadStack = append(ip.loadStack, canon)
	ip.modMu.Unlock()

	runtimeLog.WithField("module", canon).Debug("loading module")
	exports, lerr := ip.loadModule(canon)

	ip.modMu.Lock()
	ip.dropLoadLocked(canon)
	if lerr != nil {
		// Failures are not cached; a fixed file can be imported again.
		delete(ip.modules, canon)
	} else {
		rec.exports = exports
		rec.loading = false
	}
	ip.modMu.Unlock()

	if lerr != nil {
		return Value{}, lerr
	}
	return exports, nil
}

// loadModule reads, parses and evaluates one resolved file, then snapshots
// the module frame.
func (ip *Interp) loadModule(canon string) (Value, error) {
	b, err := os.ReadFile(canon)
	if err != nil {
		return Value{}, errf(KindNative, "module %s: %s", moduleName(canon), err)
	}
	src := string(b)
	forms, perr := ParseSource(src)
	if perr != nil {
		return Value{}, WrapErrorWithName(perr, canon, src)
	}
	modEnv := newFrame(ip.Core, frameRoot)
	if _, eerr := ip.EvalForms(forms, modEnv); eerr != nil {
		return Value{}, errf(KindNative, "module %s: %s", moduleName(canon), eerr)
	}
	return moduleExports(modEnv), nil
}

// moduleExports snapshots a module frame's own bindings into a map keyed by
// keywords, in definition order.
func moduleExports(modEnv *Env) Value {
	names, vals := modEnv.Bindings()
	m := NewMapObject()
	for i, n := range names {
		m.Set(Kw(n), vals[i])
	}
	return MapVal(m)
}

// ---- load context -------------------------------------------------------------

// pushLoad records canon as the innermost load context. EvalSourceNamed uses
// this so a script's imports resolve relative to the script.
func (ip *Interp) pushLoad(canon string) {
	ip.modMu.Lock()
	ip.loadStack = append(ip.loadStack, canon)
	ip.modMu.Unlock()
}

// popLoad removes the innermost occurrence of canon.
func (ip *Interp) popLoad(canon string) {
	ip.modMu.Lock()
	ip.dropLoadLocked(canon)
	ip.modMu.Unlock()
}

func (ip *Interp) dropLoadLocked(canon string) {
	for i := len(ip.loadStack) - 1; i >= 0; i-- {
		if ip.loadStack[i] == canon {
			ip.loadStack = append(ip.loadStack[:i], ip.loadStack[i+1:]...)
			return
		}
	}
}

// currentImporter returns the canonical path of the file whose import is
// being evaluated, or "" at the top level.
func (ip *Interp) currentImporter() string {
	ip.modMu.Lock()
	defer ip.modMu.Unlock()
	if n := len(ip.loadStack); n > 0 {
		return ip.loadStack[n-1]
	}
	return ""
}

// ---- resolution ---------------------------------------------------------------

// resolveModule turns a spec into the canonical absolute path of an existing
// file. An extensionless spec tries spec+".qi" before the bare spec.
func resolveModule(spec, importer string) (string, error) {
	try := func(base string) (string, bool) {
		p := spec
		if base != "" {
			p = filepath.Join(base, spec)
		}
		cands := []string{p}
		if filepath.Ext(p) == "" {
			cands = []string{p + moduleExt, p}
		}
		for _, c := range cands {
			fi, err := os.Stat(c)
			if err != nil || fi.IsDir() {
				continue
			}
			abs, aerr := filepath.Abs(c)
			if aerr != nil {
				continue
			}
			return filepath.Clean(abs), true
		}
		return "", false
	}

	if filepath.IsAbs(spec) {
		if p, ok := try(""); ok {
			return p, nil
		}
		return "", errf(KindNative, "module not found: %s", spec)
	}
	if importer != "" {
		if p, ok := try(filepath.Dir(importer)); ok {
			return p, nil
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		if p, ok := try(cwd); ok {
			return p, nil
		}
	}
	for _, root := range filepath.SplitList(os.Getenv(QIPathEnv)) {
		if root == "" {
			continue
		}
		if p, ok := try(root); ok {
			return p, nil
		}
	}
	return "", errf(KindNative, "module not found: %s", spec)
}

// moduleName shortens a canonical path to its basename without extension for
// error messages.
func moduleName(canon string) string {
	base := filepath.Base(canon)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	return base
}

// cycleChain renders "a -> b -> a" from the in-flight stack plus the repeated
// module.
func cycleChain(stack []string, again string) string {
	i := 0
	for idx, s := range stack {
		if s == again {
			i = idx
			break
		}
	}
	names := make([]string, 0, len(stack)-i+1)
	for _, s := range stack[i:] {
		names = append(names, moduleName(s))
	}
	names = append(names, moduleName(again))
	return strings.Join(names, " -> ")
}
