package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"tradegate/internal/models"
	"tradegate/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Буфер широковещательного канала; при переполнении сообщения отбрасываются
const broadcastBufferSize = 256

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Рассылает подключенным клиентам переходы гейтов риска (riskAudit)
// и записанные сделки (tradeRecorded). Broadcast никогда не блокирует
// вызывающего: при заполненном канале сообщение отбрасывается и
// учитывается в DroppedMessages.
//
// Использование:
// 1. Создать hub: hub := NewHub(WithAllowedOrigins(origins))
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastRiskAudit(evt)
// 4. При завершении: hub.Stop()
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	origins *OriginChecker
	dropped uint64
	log     *utils.Logger

	mu sync.RWMutex
}

// HubOption настройка hub
type HubOption func(*Hub)

// WithAllowedOrigins ограничивает Origin браузерных клиентов; пустой список или "*" разрешают всё
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) { h.origins = NewOriginChecker(origins) }
}

// WithLogger задаёт логгер hub
func WithLogger(l *utils.Logger) HubOption {
	return func(h *Hub) { h.log = l }
}

// NewHub создает новый Hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    NewOriginChecker(nil),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = utils.L()
	}
	h.log = h.log.WithComponent("ws_hub")
	return h
}

// Run запускает главный цикл Hub до вызова Stop
//
// Копируем список клиентов под RLock, отправляем без блокировки,
// медленных клиентов удаляем под Write Lock.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", utils.Int("clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client disconnected", utils.Int("clients", total))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("removed slow clients", utils.Int("removed", len(toRemove)), utils.Int("clients", total))
			}
		}
	}
}

// Stop останавливает Run и закрывает все клиентские каналы
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast сериализует сообщение и ставит его в очередь рассылки
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("marshal broadcast message", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := bytes.TrimRight(buf.Bytes(), "\n")
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		atomic.AddUint64(&h.dropped, 1)
	}
}

// BroadcastRiskAudit отправляет переход гейта
func (h *Hub) BroadcastRiskAudit(evt models.RiskAuditEvent) {
	h.Broadcast(NewRiskAuditMessage(evt))
}

// BroadcastTradeRecorded отправляет записанную сделку
func (h *Hub) BroadcastTradeRecorded(rec *models.TradeRecord, out models.TradeOutcome) {
	h.Broadcast(NewTradeRecordedMessage(rec, out))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages число сообщений, отброшенных из-за переполнения очереди
func (h *Hub) DroppedMessages() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
