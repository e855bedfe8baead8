package gojs

import (
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/willibrandon/ChronoJS/pkg/guest"
	"github.com/willibrandon/ChronoJS/pkg/instrumentation"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
)

// GlobalName is the global the capture API is installed under.
const GlobalName = "chrono"

// Install exposes the capture API of s to scripts as the global "chrono":
//
//	chrono.enter(name, args)          function entry; args is an array or object
//	chrono.exit(name, value, ms)      normal return
//	chrono.fail(name, error, ms)      exit by throwing
//	chrono.capture(name, value)       one variable
//	chrono.captureScope(fn, kind, o)  every own property of o; kind is a
//	                                  capture kind, never entry or exit
//	chrono.context(label, data)       free-form execution context
//	chrono.trace(fn, name)            wrap fn with entry/exit capture
//	chrono.info()                     snapshot counts and recent snapshots
//
// Capture calls return the snapshot id, or 0 when nothing was recorded.
// Capture failures are logged by the session and never throw into the
// script.
func (r *Runtime) Install(s *instrumentation.Session) error {
	api := r.vm.NewObject()

	fns := map[string]func(goja.FunctionCall) goja.Value{
		"enter": func(call goja.FunctionCall) goja.Value {
			id, _ := s.OnFunctionEntry(name(call.Argument(0)), r.inputs(call.Argument(1), "arg"))
			return r.id(id)
		},
		"exit": func(call goja.FunctionCall) goja.Value {
			id, _ := s.OnFunctionExit(name(call.Argument(0)), r.Handle(call.Argument(1)), false, millis(call.Argument(2)))
			return r.id(id)
		},
		"fail": func(call goja.FunctionCall) goja.Value {
			id, _ := s.OnFunctionExit(name(call.Argument(0)), r.Handle(call.Argument(1)), true, millis(call.Argument(2)))
			return r.id(id)
		},
		"capture": func(call goja.FunctionCall) goja.Value {
			id, _ := s.OnCaptureVariable(name(call.Argument(0)), r.Handle(call.Argument(1)))
			return r.id(id)
		},
		"captureScope": func(call goja.FunctionCall) goja.Value {
			function := name(call.Argument(0))
			kind := recorder.ScopeCapture
			if k := name(call.Argument(1)); k != "" {
				parsed, err := recorder.ParseKind(k)
				if err != nil {
					id, _ := s.Fail(&recorder.CaptureError{Op: recorder.ScopeCapture.String(), Function: function, Reason: err.Error()})
					return r.id(id)
				}
				kind = parsed
			}
			id, _ := s.OnCaptureScope(function, kind, r.inputs(call.Argument(2), "value"))
			return r.id(id)
		},
		"context": func(call goja.FunctionCall) goja.Value {
			id, _ := s.OnCaptureContext(name(call.Argument(0)), r.Handle(call.Argument(1)))
			return r.id(id)
		},
		"info": func(goja.FunctionCall) goja.Value {
			return r.info(s.Info())
		},
	}
	for key, fn := range fns {
		if err := api.Set(key, fn); err != nil {
			return err
		}
	}
	if err := api.Set("trace", func(call goja.FunctionCall) goja.Value {
		v, err := r.call(r.h.trace, api, call.Argument(0), call.Argument(1))
		if err != nil {
			if ex, ok := err.(*goja.Exception); ok {
				panic(ex.Value())
			}
			panic(r.vm.NewGoError(err))
		}
		return v
	}); err != nil {
		return err
	}
	return r.vm.Set(GlobalName, api)
}

func (r *Runtime) id(id recorder.ID) goja.Value {
	return r.vm.ToValue(uint64(id))
}

// name reads a string argument. A missing or null argument is empty.
func name(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func millis(v goja.Value) time.Duration {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return time.Duration(v.ToFloat() * float64(time.Millisecond))
}

// inputs turns an array (named prefix0, prefix1, ...) or an object (named
// by its keys) into capture inputs. Anything else is a single input.
func (r *Runtime) inputs(v goja.Value, prefix string) []recorder.Input {
	h := r.Handle(v)
	switch h.Kind() {
	case guest.KindUndefined:
		return nil
	case guest.KindArray:
		n := h.Len()
		out := make([]recorder.Input, 0, n)
		for i := 0; i < n; i++ {
			name := prefix + strconv.Itoa(i)
			if el, err := h.Index(i); err == nil {
				out = append(out, recorder.Live(name, el))
			} else {
				out = append(out, recorder.Live(name, r.Handle(goja.Undefined())))
			}
		}
		return out
	case guest.KindObject:
		keys, err := h.Keys()
		if err != nil {
			return nil
		}
		out := make([]recorder.Input, 0, len(keys))
		for _, k := range keys {
			if el, err := h.Get(k); err == nil {
				out = append(out, recorder.Live(k, el))
			}
		}
		return out
	}
	return []recorder.Input{recorder.Live(prefix, h)}
}

func (r *Runtime) info(info instrumentation.Info) goja.Value {
	obj := r.vm.NewObject()
	obj.Set("total_snapshots", info.TotalSnapshots)
	obj.Set("function_calls", info.FunctionCalls)
	obj.Set("current_function", info.CurrentFunction)
	obj.Set("call_depth", info.CallDepth)

	recent := make([]any, len(info.Recent))
	for i, s := range info.Recent {
		o := r.vm.NewObject()
		o.Set("id", uint64(s.ID))
		o.Set("function", s.Function)
		o.Set("kind", s.Kind.String())
		o.Set("variable_count", s.VariableCount)
		recent[i] = o
	}
	obj.Set("recent", r.vm.NewArray(recent...))
	return obj
}
