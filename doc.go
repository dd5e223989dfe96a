// Package redscript runs Lua scripts against Redis through the server-side script
// cache, falling back to a full-body EVAL only when the cache is cold.
//
// Components:
//   - Script: immutable body + SHA-1 digest. Run tries EVALSHA, and on a NOSCRIPT
//     reply sends EVAL exactly once. EVAL also fills the server cache, so the next
//     EVALSHA (from any caller) hits.
//   - Registry: name -> Script catalogue owned by application startup. Can prime
//     the cache of many instances with one pipelined SCRIPT LOAD batch each.
//   - prelude: bundled coordination scripts (relock, incrbyuntil, decrbyuntil, deleq).
//
// Round-trips:
//
//	warm:  EVALSHA -> ok
//	cold:  EVALSHA -> NOSCRIPT, EVAL -> ok
//
// Errors:
//
//	*UserError  - script failed to compile or raised at runtime (fix the script/input)
//	anything else - transport/server error, returned unchanged (retry the infrastructure)
//
// Usage:
//
//	reg := redscript.New(redscript.Options{Logger: zaplog.ZapLogger{L: zl}})
//	_ = reg.LoadGlob("scripts/*.lua")
//	_ = reg.EnsureLoaded(ctx, primary, replica)
//	v, err := reg.Run(ctx, rdb, "ratelimit", []string{"rl:user:1"}, 10, 60)
package redscript
