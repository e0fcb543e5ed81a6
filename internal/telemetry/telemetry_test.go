/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	events  []map[string]any
	crashes []string
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(req.Body).Decode(&m)
		r.mu.Lock()
		r.events = append(r.events, m)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, string(b))
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EventAndCrash(t *testing.T) {
	var rec recorder
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	require.True(t, c.Enabled())

	c.Event("command", map[string]any{"cmd": "parse"})
	c.UploadCrash([]byte("panic: boom"))
	c.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 1)
	assert.Equal(t, "command", rec.events[0]["name"])
	assert.Equal(t, "parse", rec.events[0]["cmd"])
	assert.NotEmpty(t, rec.events[0]["version"])
	assert.Equal(t, []string{"panic: boom"}, rec.crashes)
}

func TestClient_DisabledSendsNothing(t *testing.T) {
	var rec recorder
	srv := rec.server(t)
	c := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"})
	assert.False(t, c.Enabled())
	c.Event("command", nil)
	c.UploadCrash([]byte("x"))
	c.Close()
	c.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.events)
	assert.Empty(t, rec.crashes)
}

func TestClient_UnreachableEndpointIsSilent(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 200 * time.Millisecond})
	c.Event("command", nil)
	c.UploadCrash([]byte("x"))
	c.Close()
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GFN_TELEMETRY_OPT_IN", "Yes")
	t.Setenv("GFN_TELEMETRY_URL", " http://e ")
	t.Setenv("GFN_CRASH_UPLOAD_URL", "http://c")
	t.Setenv("GFN_TELEMETRY_TIMEOUT_MS", "250")
	cfg := FromEnv()
	assert.True(t, cfg.OptIn)
	assert.Equal(t, "http://e", cfg.EventsURL)
	assert.Equal(t, "http://c", cfg.CrashURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)

	t.Setenv("GFN_TELEMETRY_OPT_IN", "nope")
	t.Setenv("GFN_TELEMETRY_TIMEOUT_MS", "junk")
	cfg = FromEnv()
	assert.False(t, cfg.OptIn)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
}

func TestDefaultClient(t *testing.T) {
	t.Setenv("GFN_TELEMETRY_OPT_IN", "")
	Shutdown()
	Event("command", nil)
	UploadCrash(nil)
	Shutdown()
	Shutdown()
}
