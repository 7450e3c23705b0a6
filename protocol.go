/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Match sessions
//
// Each browser tab drives one session over a websocket:
// - GET /             redirects to a fresh session at /play/:session
// - GET /play/:session       serves the app shell
// - GET /play/:session/ws    carries actions in and state out as JSON
//
// A single hub goroutine per session owns its match.State. Every action and
// every deferred effect (the last card turning over, the coin landing) runs
// inside that goroutine. Deferred effects carry the generation they were
// scheduled for and are dropped if the state has moved on.
//
// Idle sessions are reaped after --session-timeout.

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/twelfthman/internal/engine"
	"github.com/Seednode/twelfthman/internal/match"
)

// Messages coming from clients
type ClientMessage struct {
	Type    string `json:"type"`               // "open", "begin", "reveal", "reveal_all", "toss"
	View    string `json:"view,omitempty"`     // open
	Mode    string `json:"mode,omitempty"`     // begin: "order" or "squad"
	Count   string `json:"count,omitempty"`    // begin, raw text from the number field
	PerTeam string `json:"per_team,omitempty"` // begin, squad only
	ID      *int   `json:"id,omitempty"`       // reveal
}

// CardView is a slot as the client may see it: hidden labels never leave
// the server.
type CardView struct {
	ID       int    `json:"id"`
	Label    string `json:"label,omitempty"`
	Revealed bool   `json:"revealed"`
}

// StateMessage is sent after every change, and to each client on connect.
type StateMessage struct {
	Type     string         `json:"type"` // "state"
	View     match.View     `json:"view"`
	Mode     engine.Mode    `json:"mode,omitempty"`
	PerTeam  int            `json:"per_team,omitempty"`
	Cards    []CardView     `json:"cards"`
	Hidden   int            `json:"hidden"`
	Complete bool           `json:"complete"`
	Outcome  engine.Outcome `json:"outcome,omitempty"`
	Flipping bool           `json:"flipping"`
	Limits   match.Limits   `json:"limits"`
}

// FeedbackMessage asks the client to play sounds or vibrate.
type FeedbackMessage struct {
	Type string   `json:"type"` // "feedback"
	Cues []string `json:"cues"` // "flip", "success", "haptic"
}

// RejectedMessage is sent only to the client whose input was declined.
type RejectedMessage struct {
	Type    string `json:"type"` // "rejected"
	Message string `json:"message"`
}

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrMissingCard = errors.New("no card id given")
)

const (
	cueFlip    = "flip"
	cueSuccess = "success"
	cueHaptic  = "haptic"
)

func newStateMessage(s match.State) StateMessage {
	cards := make([]CardView, len(s.Batch.Slots))
	for i, slot := range s.Batch.Slots {
		cards[i] = CardView{ID: slot.ID, Revealed: slot.Revealed}
		if slot.Revealed {
			cards[i].Label = slot.Label
		}
	}

	return StateMessage{
		Type:     "state",
		View:     s.View,
		Mode:     s.Batch.Mode,
		PerTeam:  s.Batch.PerGroup,
		Cards:    cards,
		Hidden:   s.Batch.Hidden(),
		Complete: s.Batch.Complete(),
		Outcome:  s.Outcome,
		Flipping: s.Flipping,
		Limits:   s.Limits,
	}
}

type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
}

type action struct {
	client *Client
	msg    ClientMessage
}

type taskKind int

const (
	taskSettle taskKind = iota
	taskLand
)

func (k taskKind) String() string {
	switch k {
	case taskSettle:
		return "settle"
	case taskLand:
		return "land"
	default:
		return "unknown"
	}
}

// task is a deferred effect, valid only for the generation it was
// scheduled in.
type task struct {
	kind taskKind
	gen  uint64
}

type Hub struct {
	id      string
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	actions  chan action
	tasks    chan task
	done     chan struct{}
	stopOnce sync.Once

	src    engine.Source
	state  match.State
	timers map[taskKind]*time.Timer

	revealDelay time.Duration
	tossDelay   time.Duration

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
	connected  int
}

func newHub(cfg *Config, sessionID string, src engine.Source) *Hub {
	now := time.Now()
	return &Hub{
		id:          sessionID,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unreg:       make(chan *Client),
		actions:     make(chan action),
		tasks:       make(chan task),
		done:        make(chan struct{}),
		src:         src,
		state:       match.New(cfg.limits()),
		timers:      make(map[taskKind]*time.Timer),
		revealDelay: cfg.revealDelay,
		tossDelay:   cfg.tossDelay,
		createdAt:   now,
		lastActive:  now,
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

// countClients publishes the number of connected clients for the reaper.
func (h *Hub) countClients() {
	h.mu.Lock()
	h.connected = len(h.clients)
	h.mu.Unlock()
}

// idle reports whether nobody is connected and nothing has happened since
// cutoff. A hub with a client on the line is never idle, however long the
// cards sit on screen.
func (h *Hub) idle(cutoff time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected == 0 && h.lastActive.Before(cutoff)
}

// stop ends the hub loop; safe to call more than once.
func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) run(cfg *Config) {
	defer h.shutdown()

	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.countClients()
			logf(cfg, "MATCH: Client %s joined %s", c.id, h.id)

			h.deliver(c, newStateMessage(h.state))

		case c := <-h.unreg:
			h.touch()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.countClients()
				close(c.send)
			}

		case a := <-h.actions:
			h.touch()
			h.handle(cfg, a)

		case t := <-h.tasks:
			h.apply(cfg, t)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) shutdown() {
	h.cancelTimers()

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.countClients()
}

// deliver queues msg for one client, dropping the client if it has fallen
// behind.
func (h *Hub) deliver(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
		h.countClients()
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.deliver(c, msg)
	}
}

func (h *Hub) broadcastState() {
	h.broadcast(newStateMessage(h.state))
}

func (h *Hub) feedback(cues ...string) {
	h.broadcast(FeedbackMessage{Type: "feedback", Cues: cues})
}

func (h *Hub) reject(c *Client, err error) {
	h.deliver(c, RejectedMessage{Type: "rejected", Message: err.Error()})
}

func (h *Hub) cancelTimers() {
	for k, t := range h.timers {
		t.Stop()
		delete(h.timers, k)
	}
}

// schedule posts a task back into the hub loop after d. A zero delay applies
// it straight away.
func (h *Hub) schedule(cfg *Config, kind taskKind, d time.Duration) {
	t := task{kind: kind, gen: h.state.Generation}

	if d <= 0 {
		h.apply(cfg, t)
		return
	}

	if old, ok := h.timers[kind]; ok {
		old.Stop()
	}

	h.timers[kind] = time.AfterFunc(d, func() {
		select {
		case h.tasks <- t:
		case <-h.done:
		}
	})
}

// replace swaps in a state with a new generation; anything still pending
// belongs to the old one.
func (h *Hub) replace(next match.State) {
	h.cancelTimers()
	h.state = next
}

func (h *Hub) handle(cfg *Config, a action) {
	msg := a.msg

	switch msg.Type {
	case "open":
		v, err := match.ParseView(msg.View)
		if err != nil {
			h.reject(a.client, err)
			return
		}

		h.replace(h.state.Open(v))
		h.broadcastState()

	case "begin":
		var (
			next match.State
			err  error
		)

		switch engine.Mode(msg.Mode) {
		case engine.ModeOrder:
			next, err = h.state.BeginOrder(h.src, msg.Count)
		case engine.ModeSquad:
			next, err = h.state.BeginSquad(h.src, msg.Count, msg.PerTeam)
		default:
			h.reject(a.client, fmt.Errorf("%w: %q", ErrUnknownMode, msg.Mode))
			return
		}

		if err != nil {
			logf(cfg, "MATCH: Declined %s batch in %s: %v", msg.Mode, h.id, err)
			h.reject(a.client, err)
			return
		}

		h.replace(next)
		logf(cfg, "MATCH: Dealt %d %s cards in %s", len(next.Batch.Slots), next.Batch.Mode, h.id)
		h.broadcastState()

	case "reveal":
		if msg.ID == nil {
			h.reject(a.client, ErrMissingCard)
			return
		}

		before := h.state.Batch.Hidden()

		next, settle := h.state.Reveal(*msg.ID)
		if next.Batch.Hidden() == before {
			return
		}

		h.state = next
		if next.Batch.Complete() {
			h.feedback(cueFlip, cueHaptic, cueSuccess)
		} else {
			h.feedback(cueFlip, cueHaptic)
		}
		h.broadcastState()

		if settle {
			h.schedule(cfg, taskSettle, h.revealDelay)
		}

	case "reveal_all":
		if h.state.View != match.ViewCards || h.state.Batch.Complete() {
			return
		}

		h.state = h.state.RevealAll()
		h.feedback(cueSuccess)
		h.broadcastState()

	case "toss":
		next, ok := h.state.StartToss()
		if !ok {
			return
		}

		h.replace(next)
		h.feedback(cueFlip)
		h.broadcastState()
		h.schedule(cfg, taskLand, h.tossDelay)
	}
}

func (h *Hub) apply(cfg *Config, t task) {
	delete(h.timers, t.kind)

	switch t.kind {
	case taskSettle:
		next, ok := h.state.Settle(t.gen)
		if !ok {
			h.dropped(cfg, t)
			return
		}

		h.state = next
		logf(cfg, "MATCH: All %d cards revealed in %s", len(next.Batch.Slots), h.id)
		h.feedback(cueSuccess)
		h.broadcastState()

	case taskLand:
		next, ok := h.state.LandToss(t.gen, engine.Flip(h.src))
		if !ok {
			h.dropped(cfg, t)
			return
		}

		h.state = next
		logf(cfg, "MATCH: Toss landed %s in %s", next.Outcome, h.id)
		h.feedback(cueSuccess, cueHaptic)
		h.broadcastState()
	}
}

// dropped logs a task that had nothing left to do. Only a task from an older
// generation is stale; a current one can find its work already done, e.g. the
// last card tapped or reveal_all pressed before the delay ran out.
func (h *Hub) dropped(cfg *Config, t task) {
	if t.gen != h.state.Generation {
		logf(cfg, "MATCH: Dropped stale %s task in %s", t.kind, h.id)
		return
	}
	logf(cfg, "MATCH: Nothing left for %s task in %s", t.kind, h.id)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const clientCookieName = "twelfthman_id"

func getOrSetClientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// Manager holds a hub per session ID.
type Manager struct {
	cfg *Config

	mu   sync.Mutex
	hubs map[string]*Hub

	newSource func() engine.Source

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newManager(ctx context.Context, cfg *Config) *Manager {
	ctx, cancel := context.WithCancel(ctx)

	gm := &Manager{
		cfg:       cfg,
		hubs:      make(map[string]*Hub),
		newSource: engine.NewSource,
		cancel:    cancel,
	}

	gm.wg.Add(1)
	go func() {
		defer gm.wg.Done()
		gm.reaperLoop(ctx)
	}()

	return gm
}

func (gm *Manager) getHub(sessionID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[sessionID]; ok {
		return hub
	}

	hub := newHub(gm.cfg, sessionID, gm.newSource())
	gm.hubs[sessionID] = hub

	gm.wg.Add(1)
	go func() {
		defer gm.wg.Done()
		hub.run(gm.cfg)
	}()

	return hub
}

const sessionIDLength = 8

// sessionAlphabet has 62 symbols, so mapping a random byte onto it skews
// slightly toward the first few; fine for a lookup key.
const sessionAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomSessionID() string {
	buf := make([]byte, sessionIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	for i, b := range buf {
		buf[i] = sessionAlphabet[int(b)%len(sessionAlphabet)]
	}

	return string(buf)
}

// newSessionID returns a random session ID no live hub is using.
func (gm *Manager) newSessionID() string {
	for {
		id := randomSessionID()

		gm.mu.Lock()
		_, taken := gm.hubs[id]
		gm.mu.Unlock()

		if !taken {
			return id
		}
	}
}

// reap stops every hub with no connected clients that has been idle since
// before cutoff.
func (gm *Manager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	n := 0
	for id, hub := range gm.hubs {
		if hub.idle(cutoff) {
			delete(gm.hubs, id)
			hub.stop()
			n++
		}
	}
	return n
}

func (gm *Manager) reaperLoop(ctx context.Context) {
	if gm.cfg.sessionTimeout <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(gm.cfg.sessionTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := gm.reap(time.Now().Add(-gm.cfg.sessionTimeout)); n > 0 {
				logf(gm.cfg, "MATCH: Reaped %d idle sessions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the reaper and every hub, and waits for them to exit.
func (gm *Manager) Close() {
	gm.cancel()

	gm.mu.Lock()
	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
	gm.mu.Unlock()

	gm.wg.Wait()
}

func serveWS(cfg *Config, gm *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")
		if sessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		clientID := getOrSetClientID(w, r)

		hub := gm.getHub(sessionID)

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			logf(cfg, "MATCH: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
			id:   clientID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.actions <- action{client: c, msg: msg}:
		case <-h.done:
			return
		}
	}
}

const writeWait = 10 * time.Second

// writePump owns all writes to the connection. It exits once the hub closes
// the send channel or a write fails.
func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// redirectNewSession handles GET / by minting a session ID and redirecting
// to it.
func redirectNewSession(cfg *Config, path string, gm *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := gm.newSessionID()
		logf(cfg, "MATCH: Created session %s for %s", sessionID, realIP(r))
		http.Redirect(w, r, cfg.prefix+path+"/"+sessionID, http.StatusTemporaryRedirect)
	}
}

// registerMatch sets up routes so that:
//   - /                        → redirects to a new session
//   - $path                    → same
//   - $path/:session           → HTML app shell
//   - $path/:session/ws        → websocket for that session
func registerMatch(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *Manager {
	gm := newManager(ctx, cfg)

	mux.GET(cfg.prefix+"/", redirectNewSession(cfg, path, gm))
	mux.GET(cfg.prefix+path, redirectNewSession(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:session", serveSessionPage(cfg, errs))
	mux.GET(cfg.prefix+path+"/:session/ws", serveWS(cfg, gm))

	return gm
}
