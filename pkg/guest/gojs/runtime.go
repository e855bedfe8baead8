// Package gojs adapts a goja JavaScript runtime to the guest interfaces and
// installs the chrono capture API into it.
package gojs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dop251/goja"
)

// helperSource defines the JS functions the adapter calls into. Going
// through JS keeps getters, proxies and exotic objects behaving exactly as
// they would for guest code, with exceptions returned as errors.
const helperSource = `(function () {
	return {
		typeOf: function (v) { return typeof v; },
		tag: function (v) { return Object.prototype.toString.call(v); },
		get: function (o, k) { return o[k]; },
		symbolInfo: function (s) {
			var d = s.description;
			return d === undefined ? [false, ""] : [true, d];
		},
		source: function (f) { return String(f.toString()); },
		mapEntries: function (m) {
			var out = [];
			m.forEach(function (v, k) { out.push(k, v); });
			return out;
		},
		setMembers: function (s) {
			var out = [];
			s.forEach(function (v) { out.push(v); });
			return out;
		},
		dateMillis: function (d) { return d.getTime(); },
		text: function (v) { return v.toString(); },

		makeBigInt: function (s) { return BigInt(s); },
		makeSymbol: function (has, d) { return has ? Symbol(d) : Symbol(); },
		makeDate: function (ms) { return new Date(ms); },
		makeRegExp: function (s, f) { return new RegExp(s, f); },
		makeError: function (name, msg) {
			var ctor = globalThis[name];
			var e = (typeof ctor === "function" && (ctor === Error || ctor.prototype instanceof Error))
				? new ctor(msg) : new Error(msg);
			if (e.name !== name) {
				Object.defineProperty(e, "name", { value: name, writable: true, configurable: true });
			}
			return e;
		},
		makeFunction: function (name, arity, src) {
			var f = function () {
				throw new TypeError("restored function " + name + " cannot be called");
			};
			Object.defineProperty(f, "name", { value: name, configurable: true });
			Object.defineProperty(f, "length", { value: arity, configurable: true });
			if (src !== "") {
				Object.defineProperty(f, "toString", { value: function () { return src; }, configurable: true });
			}
			return f;
		},
		makeMap: function () { return new Map(); },
		makeSet: function () { return new Set(); },
		mapSet: function (m, k, v) { m.set(k, v); },
		setAdd: function (s, v) { s.add(v); },

		trace: function (chrono, fn, name) {
			if (typeof fn !== "function") {
				throw new TypeError("chrono.trace expects a function");
			}
			name = name || fn.name || "<anonymous>";
			var wrapped = function () {
				var args = Array.prototype.slice.call(arguments);
				chrono.enter(name, args);
				var result;
				try {
					result = fn.apply(this, args);
				} catch (e) {
					chrono.fail(name, e);
					throw e;
				}
				chrono.exit(name, result);
				return result;
			};
			Object.defineProperty(wrapped, "name", { value: name, configurable: true });
			return wrapped;
		}
	};
})()`

type helpers struct {
	typeOf, tag, get, symbolInfo, source, mapEntries, setMembers, dateMillis, text goja.Callable
	makeBigInt, makeSymbol, makeDate, makeRegExp, makeError, makeFunction          goja.Callable
	makeMap, makeSet, mapSet, setAdd, trace                                        goja.Callable
}

// Runtime wraps a goja runtime with the adapter helpers compiled in.
type Runtime struct {
	vm     *goja.Runtime
	h      helpers
	stdout io.Writer
}

// Option configures a Runtime
type Option func(*Runtime)

// WithStdout sets where console.log writes. The default is os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(r *Runtime) {
		r.stdout = w
	}
}

// New creates a goja runtime ready to be instrumented.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{vm: goja.New(), stdout: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	v, err := r.vm.RunScript("chronojs:helpers", helperSource)
	if err != nil {
		return nil, fmt.Errorf("compile helpers: %w", err)
	}
	obj := v.ToObject(r.vm)
	fields := map[string]*goja.Callable{
		"typeOf": &r.h.typeOf, "tag": &r.h.tag, "get": &r.h.get, "symbolInfo": &r.h.symbolInfo,
		"source": &r.h.source, "mapEntries": &r.h.mapEntries, "setMembers": &r.h.setMembers,
		"dateMillis": &r.h.dateMillis, "text": &r.h.text,
		"makeBigInt": &r.h.makeBigInt, "makeSymbol": &r.h.makeSymbol, "makeDate": &r.h.makeDate,
		"makeRegExp": &r.h.makeRegExp, "makeError": &r.h.makeError, "makeFunction": &r.h.makeFunction,
		"makeMap": &r.h.makeMap, "makeSet": &r.h.makeSet, "mapSet": &r.h.mapSet, "setAdd": &r.h.setAdd,
		"trace": &r.h.trace,
	}
	for name, dst := range fields {
		fn, ok := goja.AssertFunction(obj.Get(name))
		if !ok {
			return nil, fmt.Errorf("helper %s is not a function", name)
		}
		*dst = fn
	}

	if err := r.installConsole(); err != nil {
		return nil, err
	}
	return r, nil
}

// VM exposes the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// RunScript evaluates src, naming it name in stack traces.
func (r *Runtime) RunScript(name, src string) (goja.Value, error) {
	return r.vm.RunScript(name, src)
}

// RunFile evaluates the script at path.
func (r *Runtime) RunFile(path string) (goja.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.RunScript(path, string(src))
}

// Value evaluates a JS expression and returns a handle to the result.
func (r *Runtime) Value(expr string) (*Handle, error) {
	v, err := r.vm.RunString("(" + expr + ")")
	if err != nil {
		return nil, err
	}
	return r.Handle(v), nil
}

func (r *Runtime) call(fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	return fn(goja.Undefined(), args...)
}

func (r *Runtime) installConsole() error {
	console := r.vm.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = r.Handle(a).Display()
		}
		fmt.Fprintln(r.stdout, strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, log); err != nil {
			return err
		}
	}
	return r.vm.Set("console", console)
}
