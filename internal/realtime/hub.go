// Package realtime はWebSocketによるプレゼンスチャネルを提供する。
//
// クライアントは /ws へ接続し、最初のフレームでセッショントークンを
// 送って認証する。認証後は通知エンジンとメッセージエンジンからの
// イベント（NEW_NOTIFICATION / NEW_MESSAGE）がこのチャネルに流れる。
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/openbook/internal/model"
)

// authTimeout は接続から認証フレーム受信までの猶予。
const authTimeout = 10 * time.Second

// writeTimeout は1フレームの書き込み期限。
const writeTimeout = 5 * time.Second

// SessionFinder はセッショントークンの検証インターフェース。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// Collector はWebSocket接続数メトリクスの収集インターフェース。
type Collector interface {
	SetWebSocketConnections(n int)
}

// authFrame はクライアントが最初に送る認証フレーム。
type authFrame struct {
	Token string `json:"token"`
}

// eventFrame はサーバーからクライアントへ送るイベントフレーム。
type eventFrame struct {
	Event string `json:"event"`
}

// errorFrame は認証失敗時にクライアントへ送るフレーム。
type errorFrame struct {
	Error string `json:"error"`
}

// client は認証済みの1本のWebSocket接続を表す。
// gorilla/websocketのConnは同時書き込みを1つしか許さないため、
// この接続へのすべての書き込みはwriteMuで直列化する。
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// write は1フレームを書き込み期限付きで送信する。
func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub はユーザーIDとWebSocket接続の対応を管理する。
// 同一ユーザーの複数接続（複数タブ）を許容する。
type Hub struct {
	sessions  SessionFinder
	collector Collector
	upgrader  websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
	total int
}

// NewHub はHubの新しいインスタンスを生成する。
// allowedOriginが空の場合はOrigin検証を行わない。collectorはnilでもよい。
func NewHub(sessions SessionFinder, collector Collector, allowedOrigin string) *Hub {
	return &Hub{
		sessions:  sessions,
		collector: collector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		conns: make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP はWebSocket接続を受け付ける。
// 最初のフレームの認証に失敗した場合はエラーフレームを返して切断する。
// どの経路で抜けても接続の登録解除は保証される。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocketアップグレードに失敗しました", slog.String("error", err.Error()))
		return
	}

	userID, ok := h.authenticate(r.Context(), conn)
	if !ok {
		conn.Close()
		return
	}

	cl := &client{conn: conn}
	h.bind(userID, cl)
	defer func() {
		h.unbind(userID, cl)
		conn.Close()
	}()

	slog.Info("WebSocket接続を確立しました", slog.String("user_id", userID))

	// クライアントからの後続フレームは読み捨てる。
	// 読み取りエラー（切断を含む）でループを抜け、deferで登録解除される。
	conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// authenticate は最初のフレームのトークンでセッションを検証する。
func (h *Hub) authenticate(ctx context.Context, conn *websocket.Conn) (string, bool) {
	conn.SetReadDeadline(time.Now().Add(authTimeout))

	var frame authFrame
	if err := conn.ReadJSON(&frame); err != nil {
		h.writeError(conn, "認証フレームを受信できませんでした")
		return "", false
	}
	if frame.Token == "" {
		h.writeError(conn, "トークンが指定されていません")
		return "", false
	}

	session, err := h.sessions.FindByID(ctx, frame.Token)
	if err != nil {
		slog.Error("セッションの検証に失敗しました", slog.String("error", err.Error()))
		h.writeError(conn, "認証処理に失敗しました")
		return "", false
	}
	if session == nil {
		h.writeError(conn, "トークンが無効です")
		return "", false
	}

	return session.UserID, true
}

// Push は指定ユーザーの全接続へイベントを配信する。
// 複数のリクエストゴルーチンから同時に呼ばれるため、
// 同一接続への書き込みは接続ごとのロックで直列化される。
// 接続していないユーザーへのプッシュは黙って無視され、
// 書き込みに失敗した接続はその場で登録解除される。
func (h *Hub) Push(userID, event string) {
	payload, err := json.Marshal(eventFrame{Event: event})
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(payload); err != nil {
			h.unbind(userID, c)
			c.conn.Close()
		}
	}
}

// ConnectionCount は現在の接続数を返す。
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Close は全接続を切断する。シャットダウン時に呼ぶ。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.conns {
		for c := range set {
			c.conn.Close()
		}
		delete(h.conns, userID)
	}
	h.total = 0
	if h.collector != nil {
		h.collector.SetWebSocketConnections(0)
	}
}

func (h *Hub) bind(userID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[userID] = set
	}
	set[cl] = struct{}{}
	h.total++
	if h.collector != nil {
		h.collector.SetWebSocketConnections(h.total)
	}
}

func (h *Hub) unbind(userID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		return
	}
	if _, bound := set[cl]; !bound {
		return
	}
	delete(set, cl)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
	h.total--
	if h.collector != nil {
		h.collector.SetWebSocketConnections(h.total)
	}
}

func (h *Hub) writeError(conn *websocket.Conn, msg string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteJSON(errorFrame{Error: msg})
}
