package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans batch job snapshots out to the clients watching each job.
type Hub struct {
	clients  map[string]map[Subscriber]struct{}
	register chan subscription
	unreg    chan subscription
	events   chan event
	stop     chan struct{}
	once     sync.Once
}

// event is either a snapshot or, with complete set, the end of a job stream.
type event struct {
	jobID    string
	payload  []byte
	complete bool
}

type subscription struct {
	jobID  string
	client Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:  make(map[string]map[Subscriber]struct{}),
		register: make(chan subscription),
		unreg:    make(chan subscription),
		events:   make(chan event, 64),
		stop:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.jobID]; !ok {
				h.clients[sub.jobID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.jobID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.jobID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.jobID)
				}
			}
		case ev := <-h.events:
			h.dispatch(ev)
		case <-h.stop:
			for jobID, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
				delete(h.clients, jobID)
			}
			return
		}
	}
}

func (h *Hub) dispatch(ev event) {
	clients, ok := h.clients[ev.jobID]
	if !ok {
		return
	}
	for c := range clients {
		if ev.complete {
			c.Close()
			delete(clients, c)
			continue
		}
		if err := c.Send(ev.payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, ev.jobID)
	}
}

// Register adds a client to a job stream.
func (h *Hub) Register(jobID string, client Subscriber) {
	select {
	case h.register <- subscription{jobID: jobID, client: client}:
	case <-h.stop:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(jobID string, client Subscriber) {
	select {
	case h.unreg <- subscription{jobID: jobID, client: client}:
	case <-h.stop:
	}
}

// Broadcast sends payload to every client of the job.
func (h *Hub) Broadcast(jobID string, payload []byte) {
	select {
	case h.events <- event{jobID: jobID, payload: payload}:
	case <-h.stop:
	}
}

// Complete closes every client of the job.
func (h *Hub) Complete(jobID string) {
	select {
	case h.events <- event{jobID: jobID, complete: true}:
	case <-h.stop:
	}
}

// Close stops the hub and closes every client.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.stop) })
}
