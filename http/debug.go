package http

import (
	"image/color"
	"net/http"
	"strconv"
	"time"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/segmentio/encoding/json"
)

const (
	defaultHeatmapScale = 8
	maxHeatmapScale     = 64
)

var (
	heatmapCold = colorful.Color{R: 0.05, G: 0.10, B: 0.30}
	heatmapHot  = colorful.Color{R: 1, G: 0.85, B: 0.10}
)

// SessionDebugInfo describes a session and the state of its grid.
type SessionDebugInfo struct {
	ID           string                  `json:"id"`
	UUID         string                  `json:"uuid"`
	World        string                  `json:"world"`
	CreatedAt    time.Time               `json:"created_at"`
	Participants int                     `json:"participants"`
	Entities     int                     `json:"entities"`
	Grid         GridDebugInfo           `json:"grid"`
	Stats        areagrid.OccupancyStats `json:"stats"`
	MemSize      int                     `json:"mem_size"`
}

// GridDebugInfo is the geometry of a session grid.
type GridDebugInfo struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	CellLength int `json:"cell_length"`
	Cols       int `json:"cols"`
	Rows       int `json:"rows"`
	Cells      int `json:"cells"`
	References int `json:"references"`
}

// HandleDebugSessions writes the debug info of every session as JSON.
func HandleDebugSessions(sessions *models.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := sessions.List()

		res := make([]SessionDebugInfo, len(list))
		for i, s := range list {
			info := s.GridDebugInfo()

			res[i] = SessionDebugInfo{
				ID:           sessions.GlobalSessionID(s.ID),
				UUID:         s.SessionUUID,
				World:        s.World.Name,
				CreatedAt:    s.CreatedAt,
				Participants: s.ParticipantCount(),
				Entities:     s.EntityCount(),
				Grid: GridDebugInfo{
					Width:      info.Width,
					Height:     info.Height,
					CellLength: info.CellLength,
					Cols:       info.Cols,
					Rows:       info.Rows,
					Cells:      info.Cells,
					References: info.References,
				},
				Stats:   info.Stats(),
				MemSize: s.GridMemSize(),
			}
		}

		data, err := json.Marshal(res)
		if err != nil {
			logs.Warn(errors.New("encoding debug sessions failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// HandleOccupancyImage renders the cell occupancy of the session named by the
// session_id query parameter as a PNG heatmap. Each cell is drawn as a square
// of scale pixels.
func HandleOccupancyImage(sessions *models.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		session, ok := sessions.GetByGlobalID(query.Get("session_id"))
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		scale := defaultHeatmapScale
		if v := query.Get("scale"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxHeatmapScale {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			scale = n
		}

		info := session.GridDebugInfo()
		img := imaging.New(info.Cols, info.Rows, heatmapCold)

		hottest := info.Stats().Max
		for row := 0; row < info.Rows; row++ {
			for col := 0; col < info.Cols; col++ {
				img.Set(col, row, heatColor(info.Occupancy[row*info.Cols+col], hottest))
			}
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)

		resized := imaging.Resize(img, info.Cols*scale, info.Rows*scale, imaging.NearestNeighbor)
		if err := imaging.Encode(w, resized, imaging.PNG); err != nil {
			logs.WithTag("session_id", query.Get("session_id")).
				Warn(errors.New("encoding occupancy image failed").Wrap(err))
		}
	}
}

func heatColor(n int, hottest float64) color.Color {
	if n == 0 || hottest == 0 {
		return heatmapCold
	}
	return heatmapCold.BlendHcl(heatmapHot, float64(n)/hottest).Clamped()
}
