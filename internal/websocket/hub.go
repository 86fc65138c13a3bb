package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub управляет группами подписчиков. Группа — именованное множество
// соединений: trip:<id> (события одного рейса), track:<id> (обогащенное
// отслеживание рейса), route:<id> (все активные рейсы маршрута),
// driver:<id> (соединение водителя рейса). Группа живет, пока в ней
// есть хотя бы один участник.
type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*Client]bool
	byClient map[*Client]map[string]bool
}

// NewHub создает новый менеджер групп
func NewHub() *Hub {
	return &Hub{
		groups:   make(map[string]map[*Client]bool),
		byClient: make(map[*Client]map[string]bool),
	}
}

// Join добавляет клиента в группу
func (h *Hub) Join(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true

	if _, ok := h.byClient[client]; !ok {
		h.byClient[client] = make(map[string]bool)
	}
	h.byClient[client][group] = true
}

// Leave удаляет клиента из группы
func (h *Hub) Leave(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, group)
}

func (h *Hub) leaveLocked(client *Client, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if groups, ok := h.byClient[client]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(h.byClient, client)
		}
	}
}

// RemoveClient удаляет клиента из всех групп. Вызывается при отключении.
func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for group := range h.byClient[client] {
		h.leaveLocked(client, group)
	}
	delete(h.byClient, client)
}

// EmitToGroup отправляет событие всем участникам группы. Рассылка
// выполняется по слепку списка участников, чтобы не держать блокировку
// во время записи в соединения.
func (h *Hub) EmitToGroup(group, event string, payload interface{}) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for client := range h.groups[group] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return
	}

	data, err := json.Marshal(outMessage{Type: event, Payload: payload})
	if err != nil {
		log.Printf("EmitToGroup: ошибка при кодировании сообщения: %v", err)
		return
	}

	for _, client := range members {
		client.writeMu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.writeMu.Unlock()
		if err != nil {
			log.Printf("EmitToGroup: ошибка при отправке в группу %s: %v", group, err)
		}
	}
}

// GroupSize возвращает количество участников группы
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
