package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Message представляет формат сообщения WebSocket
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outMessage исходящее сообщение с произвольным payload
type outMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// wsConn контракт соединения, который реализует *websocket.Conn
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client представляет клиентское соединение WebSocket
type Client struct {
	conn     wsConn
	clientID string
	userID   uint

	// Запись в соединение сериализована: gorilla/websocket не допускает
	// конкурентных записей
	writeMu sync.Mutex
}

// Emit отправляет клиенту событие с полезной нагрузкой
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(outMessage{Type: event, Payload: payload})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// EmitError отправляет клиенту структурированное событие ошибки
func (c *Client) EmitError(message string) {
	// Ошибка отправки здесь не критична: клиент мог уже отключиться
	_ = c.Emit("error", map[string]interface{}{"message": message})
}

// UserID возвращает ID авторизованного пользователя или 0
func (c *Client) UserID() uint {
	return c.userID
}
