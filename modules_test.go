package qi

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// --- helpers ---------------------------------------------------------------------

func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// --- import ----------------------------------------------------------------------

func Test_Modules_Import_Returns_Exports_In_Definition_Order(t *testing.T) {
	dir := t.TempDir()
	mod := writeModule(t, dir, "linear.qi", `
(def base 10)
(defn scale [x] (* base x))
(def kind :linear)`)

	m := mustMap(t, evalSrc(t, fmt.Sprintf(`
(def m (import %q))
{:ks (keys m)
 :scaled ((get m :scale) 4)
 :kind (get m :kind)}`, mod)))

	ks := mustList(t, mget(t, m, "ks"))
	for i, want := range []string{"base", "scale", "kind"} {
		wantKw(t, ks[i], want)
	}
	wantInt(t, mget(t, m, "scaled"), 40)
	wantKw(t, mget(t, m, "kind"), "linear")
}

func Test_Modules_One_File_Is_One_Module(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "stamp.qi", `(def stamp (gensym))`)

	// Two spellings of the same file: explicit extension and extensionless.
	// A shared stamp proves the body ran once and the cache is canonical.
	v := evalSrc(t, fmt.Sprintf(`
(def a (import %q))
(def b (import %q))
(= (get a :stamp) (get b :stamp))`,
		filepath.Join(dir, "stamp.qi"), filepath.Join(dir, "stamp")))
	wantBool(t, v, true)
}

func Test_Modules_Imports_Resolve_Relative_To_The_Importing_File(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helper.qi", `(def x 7)`)
	main := writeModule(t, dir, "main.qi", `(get (import "helper") :x)`)

	src, err := os.ReadFile(main)
	if err != nil {
		t.Fatalf("read main: %v", err)
	}
	ip := NewRuntime()
	v, err := ip.EvalSourceNamed(main, string(src))
	if err != nil {
		t.Fatalf("eval main: %v", err)
	}
	wantInt(t, v, 7)
}

func Test_Modules_Nested_Imports_Follow_Each_Importer(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "lib")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeModule(t, sub, "deep.qi", `(def leaf 3)`)
	writeModule(t, dir, "outer.qi", `
(def d (import "lib/deep"))
(def v (* 2 (get d :leaf)))`)

	v := evalSrc(t, fmt.Sprintf(`(get (import %q) :v)`, filepath.Join(dir, "outer.qi")))
	wantInt(t, v, 6)
}

func Test_Modules_QIPATH_Provides_Extra_Roots(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "pathmod.qi", `(def v 123)`)
	t.Setenv(QIPathEnv, dir)

	wantInt(t, evalSrc(t, `(get (import "pathmod") :v)`), 123)
}

// --- isolation and failures --------------------------------------------------------

func Test_Modules_Do_Not_See_Importer_Definitions(t *testing.T) {
	dir := t.TempDir()
	mod := writeModule(t, dir, "leaky.qi", `(def v hidden)`)

	ip := NewRuntime()
	mustEvalPersistent(t, ip, `(def hidden 1)`)
	_, err := ip.EvalPersistentSource(fmt.Sprintf(`(import %q)`, mod))
	if err == nil {
		t.Fatalf("want module load failure")
	}
	wantErrContains(t, err, "unbound")
	wantErrContains(t, err, "leaky")
}

func Test_Modules_Cycle_Is_Reported_As_A_Chain(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.qi", `(import "b")`)
	writeModule(t, dir, "b.qi", `(import "a")`)

	err := evalErr(t, fmt.Sprintf(`(import %q)`, filepath.Join(dir, "a.qi")))
	wantErrContains(t, err, "import cycle: a -> b -> a")
}

func Test_Modules_Self_Import_Is_A_Cycle(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "selfish.qi", `(import "selfish")`)

	err := evalErr(t, fmt.Sprintf(`(import %q)`, filepath.Join(dir, "selfish.qi")))
	wantErrContains(t, err, "import cycle: selfish -> selfish")
}

func Test_Modules_Not_Found(t *testing.T) {
	wantErrContains(t, evalErr(t, `(import "no-such-mod")`), "module not found: no-such-mod")
}

func Test_Modules_Failed_Loads_Are_Not_Cached(t *testing.T) {
	dir := t.TempDir()
	mod := writeModule(t, dir, "fixme.qi", `(def x (undefined-thing))`)

	ip := NewRuntime()
	_, err := ip.EvalPersistentSource(fmt.Sprintf(`(import %q)`, mod))
	wantErrContains(t, err, "unbound")

	writeModule(t, dir, "fixme.qi", `(def x 5)`)
	v := mustEvalPersistent(t, ip, fmt.Sprintf(`(get (import %q) :x)`, mod))
	wantInt(t, v, 5)
}

func Test_Modules_Import_Spec_Validation(t *testing.T) {
	wantErrKind(t, evalErr(t, `(import)`), KindSyntax)
	wantErrContains(t, evalErr(t, `(import 5)`), "import spec must be a string")
}

func Test_Modules_Computed_Spec(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "dyn.qi", `(def v :computed)`)

	v := evalSrc(t, fmt.Sprintf(`(get (import (str %q "/" "dyn")) :v)`, dir))
	wantKw(t, v, "computed")
}

// --- host API ----------------------------------------------------------------------

func Test_Modules_ImportModule_From_The_Host(t *testing.T) {
	dir := t.TempDir()
	mod := writeModule(t, dir, "twice.qi", `(defn twice [x] (* 2 x))`)

	ip := NewRuntime()
	exports, err := ip.ImportModule(mod)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	fn := mget(t, mustMap(t, exports), "twice")
	v, err := ip.Apply(fn, []Value{Int(21)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	wantInt(t, v, 42)
}
