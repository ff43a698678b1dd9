// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel_RecognizesEachSeverity(t *testing.T) {
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
}

func TestParseLevel_UnrecognizedDefaultsToInfo(t *testing.T) {
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}

func TestNew_TextHandlerWritesSeverityNotLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "text", LevelInfo)
	l.Log(context.Background(), LevelInfo, "hello")

	out := buf.String()
	assert.Contains(t, out, "severity=INFO")
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "level=")
}

func TestNew_JSONHandlerEmitsSeverityField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", LevelInfo)
	l.Log(context.Background(), LevelWarn, "careful")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARNING", record["severity"])
	assert.Equal(t, "careful", record["msg"])
}

func TestNew_LevelBelowThresholdIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "text", LevelInfo)
	l.Log(context.Background(), LevelDebug, "should not appear")
	assert.Empty(t, buf.String())
}

func TestNew_TraceIsBelowDebug(t *testing.T) {
	assert.Less(t, int(LevelTrace), int(slog.LevelDebug))
}

func TestOp_LogsPathAndOpFields(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = New(&buf, "text", LevelDebug)

	Op("read", "/a/b", "size", 5)

	out := buf.String()
	assert.True(t, strings.Contains(out, "op=read"))
	assert.True(t, strings.Contains(out, "path=/a/b"))
	assert.True(t, strings.Contains(out, "size=5"))
}
