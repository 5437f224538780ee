/*
Package devtools is a client for the remote debugging HTTP endpoint of
Chromium-based browsers (the one enabled by --remote-debugging-port).

It lists, opens, activates and closes targets, reports the browser version,
and resolves the protocol schema matching the browser's revision:

	client, err := devtools.New(devtools.Config{Port: null.IntFrom(9222)})
	if err != nil {
		return err
	}
	targets, err := client.List(ctx)
	// ...
	proto := client.Protocol(ctx) // never fails, see Protocol

Target operations report every failure to the caller. Protocol resolution is
best effort and falls back to a schema embedded in the package.
*/
package devtools
