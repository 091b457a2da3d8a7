package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/areagrid/areagrid"
	"github.com/aukilabs/areagrid/config"
	"github.com/aukilabs/areagrid/models"
	"github.com/disintegration/imaging"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newDebugSessionStore(t *testing.T) (*models.SessionStore, *models.Session) {
	world := config.World{
		Name:       "arena",
		Width:      64,
		Height:     32,
		CellLength: 16,
	}

	sessions := &models.SessionStore{
		ServerID:     "ted",
		Worlds:       config.Worlds{world.Name: world},
		DefaultWorld: world.Name,
	}

	session, err := models.NewSession(sessions.NewID(), world, time.Minute)
	require.NoError(t, err)
	require.NoError(t, sessions.Add(context.Background(), session))

	for i, r := range []*areagrid.Cube{
		areagrid.Rect(0, 0, 20, 4),
		areagrid.Rect(2, 2, 2, 2),
		areagrid.Rect(50, 20, 2, 2),
	} {
		e := models.NewEntity(uint32(i+1), 1, "", false, r)
		require.NoError(t, session.AddEntity(e))
	}

	t.Cleanup(func() {
		sessions.Remove(context.Background(), session)
	})
	return sessions, session
}

func TestHandleDebugSessions(t *testing.T) {
	sessions, session := newDebugSessionStore(t)

	w := httptest.NewRecorder()
	HandleDebugSessions(sessions)(w, httptest.NewRequest(http.MethodGet, "/debug/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var res []SessionDebugInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res, 1)

	info := res[0]
	require.Equal(t, sessions.GlobalSessionID(session.ID), info.ID)
	require.Equal(t, session.SessionUUID, info.UUID)
	require.Equal(t, "arena", info.World)
	require.Equal(t, 3, info.Entities)
	require.Equal(t, GridDebugInfo{
		Width:      64,
		Height:     32,
		CellLength: 16,
		Cols:       4,
		Rows:       2,
		Cells:      3,
		References: 4,
	}, info.Grid)
	require.Equal(t, 2.0, info.Stats.Max)
	require.Positive(t, info.MemSize)
}

func TestHandleOccupancyImage(t *testing.T) {
	sessions, session := newDebugSessionStore(t)
	h := HandleOccupancyImage(sessions)

	t.Run("image is rendered", func(t *testing.T) {
		url := "/debug/sessions/occupancy.png?scale=4&session_id=" + sessions.GlobalSessionID(session.ID)

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "image/png", w.Header().Get("Content-Type"))

		img, err := imaging.Decode(w.Body)
		require.NoError(t, err)
		require.Equal(t, 16, img.Bounds().Dx())
		require.Equal(t, 8, img.Bounds().Dy())

		hot := rgba(img.At(0, 0))
		empty := rgba(img.At(4*2, 0))
		require.NotEqual(t, hot, empty)
		require.Equal(t, empty, rgba(img.At(4*2, 4)))
	})

	t.Run("unknown session", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/debug/sessions/occupancy.png?session_id=nope", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid scale", func(t *testing.T) {
		url := "/debug/sessions/occupancy.png?scale=0&session_id=" + sessions.GlobalSessionID(session.ID)

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHeatColor(t *testing.T) {
	require.Equal(t, heatmapCold, heatColor(0, 10))
	require.Equal(t, heatmapCold, heatColor(3, 0))
	require.NotEqual(t, heatmapCold, heatColor(10, 10))
}

func rgba(c interface{ RGBA() (r, g, b, a uint32) }) [4]uint32 {
	r, g, b, a := c.RGBA()
	return [4]uint32{r, g, b, a}
}
