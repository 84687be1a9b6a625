package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/logger"
)

// Hub управляет всеми WebSocket клиентами. Состояние клиентов принадлежит
// горутине Run, остальные методы общаются с ней через каналы.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	count      chan countRequest
	ctx        context.Context
}

type message struct {
	userID  uuid.UUID
	payload []byte
}

type countRequest struct {
	userID uuid.UUID
	reply  chan int
}

// NewHub создаёт новый хаб. Хаб работает, пока жив ctx.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		count:      make(chan countRequest),
		ctx:        ctx,
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			for _, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
			}
			h.clients = map[uuid.UUID]map[*Client]struct{}{}
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.userID, msg.payload)
		case req := <-h.count:
			req.reply <- len(h.clients[req.userID])
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Publish отправляет событие всем соединениям пользователя. Сообщение для
// клиента: {"type": событие, "data": полезная нагрузка}. Публикация не
// блокирует вызывающего: при переполненной очереди событие отбрасывается,
// уведомление остаётся в БД.
func (h *Hub) Publish(userID uuid.UUID, event string, payload any) error {
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": payload,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case h.broadcast <- message{userID: userID, payload: raw}:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	default:
		return fmt.Errorf("ws: очередь рассылки переполнена")
	}
}

// Connections возвращает число активных соединений пользователя.
func (h *Hub) Connections(userID uuid.UUID) int {
	req := countRequest{userID: userID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.ctx.Done():
		return 0
	}
}

func (h *Hub) addClient(client *Client) {
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент: отключаем, writePump закроет соединение.
			logger.Log.WithFields(logrus.Fields{"user_id": userID}).Warn("ws client too slow, dropping")
			h.removeClient(client)
		}
	}
}
