package redscript

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Script.Run calls them on the hot path.
type Hooks interface {
	// EVALSHA got NOSCRIPT and the script was re-sent with EVAL.
	// name is "" for scripts not created by a Registry.
	ScriptMiss(name, sha string)

	// A server reply was classified as a user error (compile/runtime fault).
	UserScriptError(name, sha string, err error)

	// EnsureLoaded primed all scripts on connection conn (index in the call).
	Primed(conn int, scripts int)

	// EnsureLoaded failed on connection conn.
	PrimeFailed(conn int, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ScriptMiss(string, string)             {}
func (NopHooks) UserScriptError(string, string, error) {}
func (NopHooks) Primed(int, int)                       {}
func (NopHooks) PrimeFailed(int, error)                {}
