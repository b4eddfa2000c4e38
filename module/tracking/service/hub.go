package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type OfflinePolicy string

const (
	// OfflineRemove drops the vehicle's position as soon as its reporting connection goes away.
	OfflineRemove OfflinePolicy = "remove"
	// OfflineRetain keeps the last position until the idle sweeper evicts it.
	OfflineRetain OfflinePolicy = "retain"
)

type OverflowPolicy string

const (
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	OverflowDisconnect OverflowPolicy = "disconnect"
)

const defaultQueueSize = 64

// Transport delivers events to one remote peer. Send is only ever called
// from the connection's writer goroutine.
type Transport interface {
	Send(ev domain.Event) error
	Close() error
}

type positionStore interface {
	Update(vehicleID string, lat, lng float64, speed *float64) (domain.VehiclePosition, error)
	List() []domain.VehiclePosition
	Remove(vehicleID string)
	RemoveIfIdle(vehicleID string, cutoff time.Time) bool
}

type HubOptions struct {
	QueueSize int
	Overflow  OverflowPolicy
	Offline   OfflinePolicy
}

type HubStats struct {
	Devices int   `json:"devices"`
	Viewers int   `json:"viewers"`
	Dropped int64 `json:"dropped"`
}

type connection struct {
	id        string
	role      domain.Role
	transport Transport
	out       chan domain.Event
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	closed   bool
	vehicles map[string]struct{}

	dropped atomic.Int64
}

func newConnection(id string, role domain.Role, t Transport, queueSize int) *connection {
	return &connection{
		id:        id,
		role:      role,
		transport: t,
		out:       make(chan domain.Event, queueSize),
		done:      make(chan struct{}),
		vehicles:  make(map[string]struct{}),
	}
}

func (c *connection) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// bind records that this device reported vehicleID. It fails once the
// connection has been torn down so no binding outlives its connection.
func (c *connection) bind(vehicleID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.vehicles[vehicleID] = struct{}{}
	return true
}

func (c *connection) release() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	ids := make([]string, 0, len(c.vehicles))
	for id := range c.vehicles {
		ids = append(ids, id)
	}
	c.vehicles = nil
	return ids
}

func (c *connection) enqueue(ev domain.Event, policy OverflowPolicy) bool {
	for {
		select {
		case <-c.done:
			return false
		default:
		}

		select {
		case c.out <- ev:
			return true
		default:
		}

		if policy == OverflowDisconnect {
			c.shutdown()
			return false
		}

		select {
		case <-c.out:
			c.dropped.Add(1)
		default:
		}
	}
}

// Hub owns every live connection and fans events out to viewers. Location
// updates for one vehicle are serialized on a stripe lock that is held from
// the store write until the event sits in every viewer queue, which gives
// per-vehicle FIFO delivery without a global lock.
type Hub struct {
	store  positionStore
	opts   HubOptions
	logger zerolog.Logger

	stripes stripedMutex

	mu      sync.RWMutex
	conns   map[string]*connection
	viewers map[string]*connection
	closed  bool

	// vehicle id -> device connection currently reporting it
	reporters cmap.ConcurrentMap[string, string]
}

func NewHub(store positionStore, opts HubOptions, logger zerolog.Logger) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Overflow == "" {
		opts.Overflow = OverflowDropOldest
	}
	if opts.Offline == "" {
		opts.Offline = OfflineRemove
	}
	return &Hub{
		store:     store,
		opts:      opts,
		logger:    logger.With().Str("component", "hub").Logger(),
		conns:     make(map[string]*connection),
		viewers:   make(map[string]*connection),
		reporters: cmap.New[string](),
	}
}

func (h *Hub) stripe(vehicleID string) *sync.Mutex {
	return h.stripes.get(vehicleID)
}

// OnConnect registers a connection. A viewer receives the current snapshot
// of all vehicles as its first event.
func (h *Hub) OnConnect(connID string, role domain.Role, t Transport) error {
	if connID == "" {
		return errors.New("connection id is required")
	}
	switch role {
	case domain.RoleDevice:
	case domain.RoleViewer:
		if t == nil {
			return errors.New("viewer connection requires a transport")
		}
	default:
		return fmt.Errorf("unknown connection role %q", role)
	}

	c := newConnection(connID, role, t, h.opts.QueueSize)

	if role == domain.RoleViewer {
		h.stripes.lockAll()
		defer h.stripes.unlockAll()
		c.out <- domain.Event{Name: domain.EventVehiclesSnapshot, Payload: h.store.List()}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.New("hub is closed")
	}
	if _, exists := h.conns[connID]; exists {
		h.mu.Unlock()
		return fmt.Errorf("%s: %w", connID, domain.ErrDuplicateConnection)
	}
	h.conns[connID] = c
	if role == domain.RoleViewer {
		h.viewers[connID] = c
	}
	h.mu.Unlock()

	if role == domain.RoleViewer {
		go h.writeLoop(c)
	}

	h.logger.Info().Str("conn_id", connID).Str("role", string(role)).Msg("connection registered")
	return nil
}

// Registered reports whether connID is a live connection.
func (h *Hub) Registered(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[connID]
	return ok
}

// OnDisconnect tears a connection down. Only the first call for a given id
// has any effect.
func (h *Hub) OnDisconnect(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		delete(h.viewers, connID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	c.shutdown()
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", connID).Msg("transport close")
		}
	}

	for _, vehicleID := range c.release() {
		h.releaseVehicle(connID, vehicleID)
	}

	h.logger.Info().
		Str("conn_id", connID).
		Str("role", string(c.role)).
		Int64("dropped", c.dropped.Load()).
		Msg("connection closed")
}

func (h *Hub) releaseVehicle(connID, vehicleID string) {
	mu := h.stripe(vehicleID)
	mu.Lock()
	defer mu.Unlock()

	owned := h.reporters.RemoveCb(vehicleID, func(_ string, owner string, exists bool) bool {
		return exists && owner == connID
	})
	if !owned {
		return
	}

	if h.opts.Offline == OfflineRemove {
		h.store.Remove(vehicleID)
	}
	h.fanout(domain.Event{
		Name:    domain.EventVehicleOffline,
		Payload: domain.VehicleOfflinePayload{VehicleID: vehicleID, Reason: domain.OfflineReasonDisconnected},
	})
}

// OnDeviceLocationUpdate stores a report from a device connection and fans
// the accepted position out to every viewer. Rejected reports are logged and
// dropped; the connection stays open.
func (h *Hub) OnDeviceLocationUpdate(connID string, report domain.LocationReport) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Warn().Err(domain.ErrUnknownConnection).Str("conn_id", connID).Msg("location update dropped")
		return false
	}
	if c.role != domain.RoleDevice {
		h.logger.Warn().Str("conn_id", connID).Str("role", string(c.role)).Msg("location update from non-device connection dropped")
		return false
	}

	mu := h.stripe(report.VehicleID)
	mu.Lock()
	defer mu.Unlock()

	// Bind before writing: a teardown that races this update either sees the
	// binding and waits on the stripe, or has already closed the connection.
	if !c.bind(report.VehicleID) {
		h.logger.Debug().Str("conn_id", connID).Str("vehicle_id", report.VehicleID).Msg("location update from closed connection dropped")
		return false
	}

	pos, err := h.store.Update(report.VehicleID, report.Latitude, report.Longitude, report.Speed)
	if err != nil {
		h.logger.Warn().Err(err).Str("conn_id", connID).Str("vehicle_id", report.VehicleID).Msg("location update rejected")
		return false
	}
	h.reporters.Set(report.VehicleID, connID)

	h.fanout(domain.Event{Name: domain.EventLocationUpdate, Payload: pos})
	return true
}

// Broadcast enqueues ev for every viewer without blocking on any of them.
func (h *Hub) Broadcast(ev domain.Event) {
	h.fanout(ev)
}

func (h *Hub) fanout(ev domain.Event) {
	var overflowed []string
	h.mu.RLock()
	for id, c := range h.viewers {
		if !c.enqueue(ev, h.opts.Overflow) {
			overflowed = append(overflowed, id)
		}
	}
	h.mu.RUnlock()

	// Teardown closes the transport, which may block; callers can hold a stripe.
	for _, id := range overflowed {
		go h.OnDisconnect(id)
	}
}

// EvictIdle removes every position last updated before cutoff and returns
// the evicted vehicle ids. Viewers get a vehicle_offline event unless one
// was already sent when the reporting device disconnected.
func (h *Hub) EvictIdle(cutoff time.Time) []string {
	var evicted []string
	for _, pos := range h.store.List() {
		if !pos.UpdatedAt.Before(cutoff) {
			continue
		}
		if h.evictIfIdle(pos.VehicleID, cutoff) {
			evicted = append(evicted, pos.VehicleID)
		}
	}
	return evicted
}

func (h *Hub) evictIfIdle(vehicleID string, cutoff time.Time) bool {
	mu := h.stripe(vehicleID)
	mu.Lock()
	defer mu.Unlock()

	if !h.store.RemoveIfIdle(vehicleID, cutoff) {
		return false
	}
	// A retained position whose reporter already left was announced offline
	// on disconnect.
	if _, bound := h.reporters.Pop(vehicleID); !bound {
		return true
	}
	h.fanout(domain.Event{
		Name:    domain.EventVehicleOffline,
		Payload: domain.VehicleOfflinePayload{VehicleID: vehicleID, Reason: domain.OfflineReasonIdle},
	})
	return true
}

func (h *Hub) writeLoop(c *connection) {
	defer h.OnDisconnect(c.id)
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.out:
			if err := c.transport.Send(ev); err != nil {
				h.logger.Warn().
					Err(fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err)).
					Str("conn_id", c.id).
					Str("event", ev.Name).
					Msg("dropping viewer connection")
				return
			}
		}
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var stats HubStats
	for _, c := range h.conns {
		if c.role == domain.RoleViewer {
			stats.Viewers++
		} else {
			stats.Devices++
		}
		stats.Dropped += c.dropped.Load()
	}
	return stats
}

// Close disconnects everyone and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.OnDisconnect(id)
	}
}
