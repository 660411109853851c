// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sandbox

import (
	"fmt"
	"strings"
)

// runnerScriptTemplate is the Python program copied into every sandbox
// container at /tmp/runner.py. It speaks the line-delimited IPC
// protocol in ipc.go over stdin/stdout: it reads code blocks framed by
// __CODE_START__/__CODE_END__, executes them as the body of an async
// function (so `await`-ing a tool call can suspend mid-statement), and
// for PTC sessions proxies any call to a registered tool name back to
// the driver as a __PTC_TOOL_CALL__ line, blocking on stdin for the
// matching __PTC_TOOL_RESULT__ line.
//
// v3: uses a dedicated reader thread feeding a condition-variable
// buffer keyed by call_id, fixing a buffered-I/O interleaving bug where
// a tool result line could be consumed by the wrong in-flight call.
const runnerScriptTemplate = `
import asyncio
import json
import sys
import threading
import io
import contextlib
import traceback
import queue

RUNNER_SCRIPT_VERSION = %d

_stdin_lock = threading.Lock()
_stdin_cv = threading.Condition(_stdin_lock)
_pending_results = {}
_code_lines = queue.Queue()

def _reader_thread():
    for raw in sys.stdin:
        line = raw.strip()
        if not line.startswith(%q):
            _code_lines.put(raw.rstrip("\n"))
            continue
        payload = line[len(%q):-len(%q)]
        msg = json.loads(payload)
        call_id = msg.get("call_id")
        with _stdin_cv:
            _pending_results[call_id] = msg
            _stdin_cv.notify_all()
    _code_lines.put(None)

threading.Thread(target=_reader_thread, daemon=True).start()

def _send_tool_call(call_id, name, tool_input):
    envelope = json.dumps({"call_id": call_id, "name": name, "input": tool_input})
    sys.__stdout__.write(%q + envelope + %q + "\n")
    sys.__stdout__.flush()

def _receive_tool_result(call_id):
    with _stdin_cv:
        while call_id not in _pending_results:
            _stdin_cv.wait()
        msg = _pending_results.pop(call_id)
    if msg.get("is_error"):
        raise RuntimeError(msg.get("result"))
    return msg.get("result")

_call_counter = 0

def _create_tool_function(name):
    async def _tool(**kwargs):
        global _call_counter
        _call_counter += 1
        call_id = f"call_{_call_counter}"
        loop = asyncio.get_event_loop()
        await loop.run_in_executor(None, _send_tool_call, call_id, name, kwargs)
        return await loop.run_in_executor(None, _receive_tool_result, call_id)
    return _tool

_tools = {%s}

async def execute_user_code(code):
    out = io.StringIO()
    namespace = dict(_tools)
    namespace["__builtins__"] = __builtins__
    indented = "\n".join("    " + line for line in code.split("\n"))
    wrapper = "async def __user_main__():\n" + indented
    with contextlib.redirect_stdout(out):
        exec(compile(wrapper, "<sandbox>", "exec"), namespace)
        await namespace["__user_main__"]()
    return out.getvalue()

def _read_code_block():
    lines = []
    started = False
    while True:
        line = _code_lines.get()
        if line is None:
            return None
        if line == %q:
            started = True
            continue
        if line == %q:
            return "\n".join(lines)
        if started:
            lines.append(line)

async def main():
    sys.stderr.write(%q + "\n")
    sys.stderr.flush()
    while True:
        code = _read_code_block()
        if code is None:
            return
        if code.strip() == %q:
            return
        stdout_text = ""
        stderr_text = ""
        return_code = 0
        try:
            stdout_text = await execute_user_code(code)
        except Exception:
            stderr_text = traceback.format_exc()
            return_code = 1
        result = json.dumps({
            "success": return_code == 0,
            "stdout": stdout_text,
            "stderr": stderr_text,
            "return_code": return_code,
        })
        sys.stdout.write(%q + result + %q + "\n")
        sys.stdout.flush()

asyncio.run(main())
`

// BuildRunnerScript renders the embedded runner program for a PTC
// session with the given tool names bound to stub functions that proxy
// calls back to the driver over stdio.
func BuildRunnerScript(toolNames []string) string {
	entries := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		entries = append(entries, fmt.Sprintf("%q: _create_tool_function(%q)", name, name))
	}
	return fmt.Sprintf(runnerScriptTemplate,
		RunnerScriptVersion,
		markerToolResultStart, markerToolResultStart, markerToolResultEnd,
		markerToolCallStart, markerToolCallEnd,
		strings.Join(entries, ", "),
		markerCodeStart, markerCodeEnd,
		markerReady,
		markerExitSession,
		markerOutputStart, markerOutputEnd,
	)
}
