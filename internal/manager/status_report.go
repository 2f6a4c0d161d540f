package manager

import (
	"time"

	"chatd/pkg/types"
)

// Status builds the response for /status.
func (c *Controller) Status() types.StatusResponse {
	snap := c.Snapshot()
	resp := types.StatusResponse{
		State:            string(snap.State),
		NowGenerating:    snap.NowGenerating,
		Backend:          string(c.backend.Kind()),
		ChatID:           snap.ChatID,
		EntryID:          snap.EntryID,
		Buffer:           c.buf.Text(),
		LastError:        snap.Err,
		UptimeSeconds:    int64(time.Since(c.startTime).Seconds()),
		GenerationsTotal: c.generations.Load(),
		AbortsTotal:      c.aborts.Load(),
	}
	if loader, ok := c.backend.(ModelLoader); ok {
		if m, ok := loader.LoadedModel(); ok {
			resp.LoadedModel = m.ID
		}
	}
	return resp
}
