//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo detects the manual Add/Done pattern that wg.Go replaces.
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    work()
//	}()
//
// becomes
//
//	wg.Go(work)
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern").
		Suggest("$wg.Go(func() { $body })")
}

// ModuleLogger flags direct printing from library packages. Packages log
// through their GetLogger() module logger so levels and file output apply.
func ModuleLogger(m dsl.Matcher) {
	m.Match(
		`fmt.Println($*_)`,
		`fmt.Printf($*_)`,
		`log.Printf($*_)`,
		`log.Println($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("log through the package GetLogger() instead of printing")
}

// StructuredErrors flags plain fmt.Errorf in pipeline packages, where errors
// carry a component and category for telemetry.
func StructuredErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/(camera|detector|classifier|tracker|pipeline|frigate|clip|storage)$`)).
		Report("build errors with errors.New(err).Component(...).Category(...).Build()")
}

// MatLiteralClose flags gocv Mats created inline as call arguments; they are
// never closed and leak native memory.
func MatLiteralClose(m dsl.Matcher) {
	m.Match(`$f(gocv.NewMat())`, `$f($*_, gocv.NewMat(), $*_)`).
		Report("assign gocv.NewMat() to a variable and Close it")
}

// TimeSince prefers time.Since over time.Now().Sub.
func TimeSince(m dsl.Matcher) {
	m.Match(`time.Now().Sub($t)`).
		Report("use time.Since($t)").
		Suggest("time.Since($t)")
}
