package websocket

import "testing"

func TestHubJoinLeave(t *testing.T) {
	h := NewHub()
	a := &Client{clientID: "a"}
	b := &Client{clientID: "b"}

	h.Join(a, "trip:42")
	h.Join(b, "trip:42")
	if size := h.GroupSize("trip:42"); size != 2 {
		t.Fatalf("GroupSize = %d, ожидалось 2", size)
	}

	h.Leave(a, "trip:42")
	if size := h.GroupSize("trip:42"); size != 1 {
		t.Errorf("GroupSize после Leave = %d, ожидалось 1", size)
	}

	// Повторный выход безопасен
	h.Leave(a, "trip:42")
	if size := h.GroupSize("trip:42"); size != 1 {
		t.Errorf("GroupSize после повторного Leave = %d, ожидалось 1", size)
	}
}

func TestHubEmptyGroupRemoved(t *testing.T) {
	h := NewHub()
	a := &Client{clientID: "a"}

	h.Join(a, "trip:42")
	h.Leave(a, "trip:42")

	if size := h.GroupSize("trip:42"); size != 0 {
		t.Errorf("GroupSize пустой группы = %d, ожидалось 0", size)
	}
	if len(h.groups) != 0 {
		t.Errorf("пустая группа не удалена из карты групп")
	}
	if len(h.byClient) != 0 {
		t.Errorf("клиент без групп не удален из обратной карты")
	}
}

func TestHubRemoveClient(t *testing.T) {
	h := NewHub()
	a := &Client{clientID: "a"}
	b := &Client{clientID: "b"}

	h.Join(a, "trip:42")
	h.Join(a, "route:1")
	h.Join(b, "trip:42")

	h.RemoveClient(a)

	if size := h.GroupSize("trip:42"); size != 1 {
		t.Errorf("GroupSize trip:42 = %d, ожидалось 1", size)
	}
	if size := h.GroupSize("route:1"); size != 0 {
		t.Errorf("GroupSize route:1 = %d, ожидалось 0", size)
	}

	// Удаление не подписанного клиента безопасно
	h.RemoveClient(a)
}

func TestHubGroupsIndependent(t *testing.T) {
	h := NewHub()
	a := &Client{clientID: "a"}

	h.Join(a, "trip:42")
	h.Join(a, "track:42")

	h.Leave(a, "trip:42")
	if size := h.GroupSize("track:42"); size != 1 {
		t.Errorf("выход из одной группы затронул другую: GroupSize = %d", size)
	}
}
