package handlers

import (
	"net/http"

	"github.com/callshield/callshield/pkg/core/script"
)

// ScriptHandler exposes the agent script and its role timeline so clients
// can drive playback and display the expected turn structure.
type ScriptHandler struct {
	Timeline *script.Timeline
}

type scriptSegment struct {
	Index         int     `json:"index"`
	Text          string  `json:"text"`
	AgentSeconds  float64 `json:"agent_seconds"`
	CallerSeconds float64 `json:"caller_seconds"`
}

type scriptWindow struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds,omitempty"`
	Role         string  `json:"role"`
	SegmentIndex int     `json:"segment_index"`
	OpenEnded    bool    `json:"open_ended,omitempty"`
}

type scriptResponse struct {
	Segments             []scriptSegment `json:"segments"`
	Windows              []scriptWindow  `json:"windows"`
	TotalScriptedSeconds float64         `json:"total_scripted_seconds"`
}

func (h ScriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segs := h.Timeline.Segments()
	wins := h.Timeline.Windows()

	resp := scriptResponse{
		Segments:             make([]scriptSegment, 0, len(segs)),
		Windows:              make([]scriptWindow, 0, len(wins)),
		TotalScriptedSeconds: h.Timeline.TotalScriptedDuration().Seconds(),
	}
	for i, s := range segs {
		resp.Segments = append(resp.Segments, scriptSegment{
			Index:         i,
			Text:          s.Text,
			AgentSeconds:  s.AgentDuration.Seconds(),
			CallerSeconds: s.CallerDuration.Seconds(),
		})
	}
	for _, win := range wins {
		sw := scriptWindow{
			StartSeconds: win.Start.Seconds(),
			Role:         win.Role.String(),
			SegmentIndex: win.SegmentIndex,
		}
		if win.End == script.OpenEnd {
			sw.OpenEnded = true
		} else {
			sw.EndSeconds = win.End.Seconds()
		}
		resp.Windows = append(resp.Windows, sw)
	}

	writeJSON(w, http.StatusOK, resp)
}
