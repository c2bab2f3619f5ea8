// Command prosefn lists the builtin primitive functions defined in a
// package: every exported function assignable to prose.Primitive. Its
// output is a starting point for registry entries in builtins.go.
package main

import (
	"flag"
	"fmt"
	"go/token"
	"go/types"
	"os"
	"regexp"
	"sort"

	"golang.org/x/tools/go/packages"
)

func main() {
	var match, ignore string
	var prosepkg string
	flag.StringVar(&match, "match", ".", "include only functions matching this regular expression")
	flag.StringVar(&ignore, "ignore", "$^", "exclude functions matching this regular expression")
	flag.StringVar(&prosepkg, "prose", "github.com/proselang/prose", "import path for the prose package")
	flag.Parse()
	mre, err := regexp.Compile(match)
	if err != nil {
		fail("error compiling match:", err)
	}
	ire, err := regexp.Compile(ignore)
	if err != nil {
		fail("error compiling ignore:", err)
	}

	fset := token.NewFileSet()
	config := packages.Config{Mode: packages.NeedTypes | packages.NeedSyntax | packages.NeedImports, Fset: fset}
	paths := append([]string{prosepkg}, flag.Args()...)
	pkgs, err := packages.Load(&config, paths...)
	if err != nil {
		fail("error loading packages:", err)
	}
	fn := getPrimitive(pkgs)
	results := []string{}
	for _, pkg := range pkgs {
		results = append(results, find(pkg.Types.Scope(), fn, mre, ire)...)
	}
	sort.Strings(results)
	for _, name := range results {
		fmt.Printf("\t{%q, %s},\n", "_"+name, name)
	}
}

func fail(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

func getPrimitive(pkgs []*packages.Package) types.Type {
	pkg := pkgs[0].Types
	r := pkg.Scope().Lookup("Primitive")
	if r == nil {
		fail(pkg.Name(), "has no definition of Primitive")
	}
	t, ok := r.(*types.TypeName)
	if !ok {
		fail(pkg.Name(), "has incorrect definition of Primitive:", r)
	}
	return t.Type().Underlying()
}

func find(pkg *types.Scope, fn types.Type, mre, ire *regexp.Regexp) []string {
	var results []string
	for _, name := range pkg.Names() {
		if !mre.MatchString(name) || ire.MatchString(name) {
			continue
		}
		t := pkg.Lookup(name).Type()
		if types.AssignableTo(t, fn) {
			results = append(results, name)
		}
	}
	return results
}
