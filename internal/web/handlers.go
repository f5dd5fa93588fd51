package web

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/makt28/netcanary/internal/history"
)

// Handlers serves the JSON status API.
type Handlers struct {
	history *history.Store
}

func NewHandlers(hist *history.Store) *Handlers {
	return &Handlers{history: hist}
}

// apiChannelView is the JSON representation of a channel for the list API.
type apiChannelView struct {
	Name                string            `json:"name"`
	Kind                string            `json:"kind"`
	IntervalSeconds     int64             `json:"interval_seconds"`
	Healthy             bool              `json:"healthy"`
	SuccessRate24h      float64           `json:"success_rate_24h"`
	LastAttempt         int64             `json:"last_attempt"`
	LastSuccess         int64             `json:"last_success"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	Delivered           uint64            `json:"delivered"`
	Failed              uint64            `json:"failed"`
	ResponseTime        int               `json:"response_time"`
	Attempts            []history.Attempt `json:"attempts"`
}

// apiDetailView adds the outage list.
type apiDetailView struct {
	apiChannelView
	Incidents []history.Outage `json:"incidents"`
}

func getPoints(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("points"))
	if err != nil || n <= 0 {
		return 30
	}
	if n > 200 {
		return 200
	}
	return n
}

// roundRate rounds to 2 decimal places.
func roundRate(v float64) float64 {
	return math.Round(v*100) / 100
}

func lastLatency(pts []history.Attempt) int {
	if len(pts) == 0 {
		return 0
	}
	return pts[len(pts)-1].Latency
}

func tailPoints(pts []history.Attempt, n int) []history.Attempt {
	if len(pts) <= n {
		return pts
	}
	return pts[len(pts)-n:]
}

func channelView(h history.ChannelHistory, points int) apiChannelView {
	v := apiChannelView{
		Name:                h.Name,
		Kind:                h.Kind,
		IntervalSeconds:     h.IntervalSeconds,
		Healthy:             h.Healthy,
		SuccessRate24h:      roundRate(h.SuccessRate24h),
		LastAttempt:         h.LastAttempt,
		LastSuccess:         h.LastSuccess,
		ConsecutiveFailures: h.ConsecutiveFailures,
		Delivered:           h.Delivered,
		Failed:              h.Failed,
		ResponseTime:        lastLatency(h.Attempts),
		Attempts:            tailPoints(h.Attempts, points),
	}
	if v.Attempts == nil {
		v.Attempts = []history.Attempt{}
	}
	return v
}

// APIChannels returns JSON data for all channels.
func (h *Handlers) APIChannels(w http.ResponseWriter, r *http.Request) {
	points := getPoints(r)
	all := h.history.All()

	views := make([]apiChannelView, 0, len(all))
	for _, c := range all {
		views = append(views, channelView(c, points))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channels": views,
		"total":    len(views),
	})
}

// APIChannelDetail returns one channel with its outages.
func (h *Handlers) APIChannelDetail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	c := h.history.Get(name)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	writeJSON(w, http.StatusOK, apiDetailView{
		apiChannelView: channelView(*c, getPoints(r)),
		Incidents:      c.Incidents,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
