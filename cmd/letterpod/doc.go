// Package main hosts the letterpod command-line interface.
//
// The CLI runs the newsletter-to-podcast pipeline once (`run`), previews the
// selection without side effects (`plan`), runs the scheduler and HTTP API
// (`serve`), queries a running daemon (`status`), and checks credentials and
// collaborators (`doctor`). Configuration is loaded once per invocation from
// --config or the default locations; commands annotated with skipConfigLoad
// (such as `config init`) bypass it.
package main
