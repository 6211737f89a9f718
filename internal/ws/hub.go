package ws

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans report payloads out to feed subscribers, keyed by zone ID. All
// subscriber maps are owned by the run goroutine; there is no shared locking.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with zone identifier.
type message struct {
	zoneID  string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	zoneID string
	client Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.zoneID]; !ok {
				h.clients[sub.zoneID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.zoneID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.zoneID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.zoneID)
				}
			}
		case msg := <-h.broadcast:
			clients, ok := h.clients[msg.zoneID]
			if !ok {
				continue
			}
			for c := range clients {
				if err := c.Send(msg.payload); err != nil {
					c.Close()
					delete(clients, c)
				}
			}
			if len(clients) == 0 {
				delete(h.clients, msg.zoneID)
			}
		}
	}
}

// Register adds a client to a zone feed.
func (h *Hub) Register(zoneID string, client Subscriber) {
	h.register <- subscription{zoneID: zoneID, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(zoneID string, client Subscriber) {
	h.unreg <- subscription{zoneID: zoneID, client: client}
}

// Broadcast sends payload to every subscriber of the zone.
func (h *Hub) Broadcast(zoneID string, payload []byte) {
	h.broadcast <- message{zoneID: zoneID, payload: payload}
}
