/*
Package log provides structured logging for the miner, built on zerolog.

# Architecture

	┌──────────────────────── LOGGING ─────────────────────────┐
	│                                                            │
	│  Init(Config) sets the global Logger once, at startup     │
	│    - JSONOutput: true  -> newline-delimited JSON to Output │
	│    - JSONOutput: false -> zerolog.ConsoleWriter (dev use)  │
	│                                                            │
	│  Component loggers (one per subsystem):                   │
	│    WithComponent("storage")                                │
	│    WithComponent("scheduler")                              │
	│    WithComponent("downloader")                             │
	│    WithComponent("extractor")                              │
	│    WithComponent("waste")                                  │
	│    WithComponent("report")                                 │
	│    WithComponent("engine")                                 │
	│                                                            │
	│  Context loggers layer package/version/task identity on   │
	│  top of a component logger via WithPackage/WithVersion/   │
	│  WithTask, so every line from a worker carries enough to  │
	│  grep a single task's history out of the aggregate stream.│
	│                                                            │
	└────────────────────────────────────────────────────────────┘

# Best practices

Do: use structured fields (.Str, .Int, .Err) instead of string
concatenation; attach a component logger once per goroutine and reuse it;
log errors with .Err(err) so the error chain survives into the JSON output.

Don't: log archive contents or manifest bodies at Info level — they belong
at Debug, since a misbehaving registry entry can be arbitrarily large; don't
log in the hot per-tar-entry loop of the extractor without sampling.

# See also

Zerolog: https://github.com/rs/zerolog
*/
package log
