// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/oggconv/internal/ffmpeg"
)

type recordingSender struct {
	live map[string]bool
	got  []Event
}

func (s *recordingSender) Send(clientID string, ev Event) bool {
	if !s.live[clientID] {
		return false
	}
	s.got = append(s.got, ev)
	return true
}

func TestEvent_WireFormat(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Welcome("abc"), `{"type":"welcome","data":"abc"}`},
		{Log("frame=1"), `{"type":"log","data":"frame=1"}`},
		{Duration(60.5), `{"type":"duration","data":60.5}`},
		{Progress(42), `{"type":"progress","data":42}`},
		{Done("/download/x.ogg?name=a.ogg"), `{"type":"done","data":{"downloadUrl":"/download/x.ogg?name=a.ogg"}}`},
		{Error("transcoder exited with code 17"), `{"type":"error","data":"transcoder exited with code 17"}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Type), func(t *testing.T) {
			b, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestDispatcher_RoutesAndDrops(t *testing.T) {
	s := &recordingSender{live: map[string]bool{"c1": true}}
	d := NewDispatcher(s)

	assert.True(t, d.Dispatch("c1", Progress(10)))
	assert.False(t, d.Dispatch("gone", Progress(20)))

	require.Len(t, s.got, 1)
	assert.Equal(t, Progress(10), s.got[0])
}

func TestDispatcher_DispatchUpdate(t *testing.T) {
	s := &recordingSender{live: map[string]bool{"c1": true}}
	d := NewDispatcher(s)

	d.DispatchUpdate("c1", ffmpeg.Update{Kind: ffmpeg.UpdateLog, Line: "x"})
	d.DispatchUpdate("c1", ffmpeg.Update{Kind: ffmpeg.UpdateDuration, Seconds: 3})
	d.DispatchUpdate("c1", ffmpeg.Update{Kind: ffmpeg.UpdateProgress, Percent: 7})
	assert.False(t, d.DispatchUpdate("c1", ffmpeg.Update{Kind: ffmpeg.UpdateKind(99)}))

	assert.Equal(t, []Event{Log("x"), Duration(3), Progress(7)}, s.got)
}
