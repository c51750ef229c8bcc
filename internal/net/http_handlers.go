package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

// HTTPHandlerConfig tunes the handler assembly.
type HTTPHandlerConfig struct {
	ClientDir string
	Logger    *log.Logger
}

type clientMessage struct {
	Ver     int     `json:"ver,omitempty"`
	Type    string  `json:"type"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	DI      int     `json:"di"`
	DJ      int     `json:"dj"`
	CacheID string  `json:"cacheId"`
	Seq     uint64  `json:"seq,omitempty"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq,omitempty"`
	Reason string `json:"reason"`
}

func encodeMessage(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// NewHTTPHandler assembles the server mux: join, websocket, the nearby
// query, health, and optionally the static client.
func NewHTTPHandler(hub *Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		join := hub.Join()
		data, err := json.Marshal(join)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/caches/nearby", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		query := r.URL.Query()
		lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(query.Get("lng"), 64)
		meters, errRadius := strconv.ParseFloat(query.Get("radius"), 64)
		if errLat != nil || errLng != nil || errRadius != nil {
			httpError(w, "lat, lng, and radius are required", nethttp.StatusBadRequest)
			return
		}

		caches := hub.CachesNearby(lat, lng, meters)
		payload := struct {
			Caches any `json:"caches"`
		}{Caches: caches}
		if caches == nil {
			payload.Caches = []any{}
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		subscriberID := r.URL.Query().Get("id")
		if subscriberID == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", subscriberID, err)
			return
		}

		sub, snapshot, ok := hub.Subscribe(subscriberID, conn)
		if !ok {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown subscriber")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}

		data, err := encodeMessage(snapshot)
		if err != nil {
			logger.Printf("failed to marshal initial state for %s: %v", subscriberID, err)
			hub.Disconnect(subscriberID)
			return
		}
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			hub.Disconnect(subscriberID)
			return
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				hub.Disconnect(subscriberID)
				return
			}

			var msg clientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Printf("discarding malformed message from %s: %v", subscriberID, err)
				continue
			}

			writeJSON := func(payload any) bool {
				data, err := encodeMessage(payload)
				if err != nil {
					logger.Printf("failed to marshal response for %s: %v", subscriberID, err)
					return true
				}
				if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.Disconnect(subscriberID)
					return false
				}
				return true
			}

			sendReject := func(reason string) bool {
				return writeJSON(commandRejectMessage{
					Ver:    ProtocolVersion,
					Type:   "commandReject",
					Seq:    msg.Seq,
					Reason: reason,
				})
			}

			switch msg.Type {
			case "move":
				state, ok := hub.HandleMove(subscriberID, msg.Lat, msg.Lng)
				if !ok {
					if !sendReject(RejectUnknownActor) {
						return
					}
					continue
				}
				if !writeJSON(state) {
					return
				}
				go hub.BroadcastState()
			case "step":
				state, ok := hub.HandleStep(subscriberID, msg.DI, msg.DJ)
				if !ok {
					if !sendReject(RejectUnknownActor) {
						return
					}
					continue
				}
				if !writeJSON(state) {
					return
				}
				go hub.BroadcastState()
			case "collect":
				state, reason := hub.HandleCollect(subscriberID, msg.CacheID)
				if reason != "" {
					if !sendReject(reason) {
						return
					}
					continue
				}
				if !writeJSON(state) {
					return
				}
				go hub.BroadcastState()
			case "deposit":
				state, reason := hub.HandleDeposit(subscriberID, msg.CacheID)
				if reason != "" {
					if !sendReject(reason) {
						return
					}
					continue
				}
				if !writeJSON(state) {
					return
				}
				go hub.BroadcastState()
			case "reset":
				state, ok := hub.HandleReset(subscriberID)
				if !ok {
					if !sendReject(RejectUnknownActor) {
						return
					}
					continue
				}
				if !writeJSON(state) {
					return
				}
				go hub.BroadcastState()
			default:
				logger.Printf("unknown message type %q from %s", msg.Type, subscriberID)
			}
		}
	})

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
