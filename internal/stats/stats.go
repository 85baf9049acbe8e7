package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

// Metric names registered at startup. Callers refer to these constants
// rather than repeating strings.
const (
	ActiveConnections = "ActiveConnections"
	OnlineUsers       = "OnlineUsers"
	MessagesBroadcast = "MessagesBroadcast"
	DeliveryFailures  = "DeliveryFailures"
)

type Provider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// Updater exposes process metrics over expvar at /debug/vars. Updates are
// funneled through a channel so callers never block on the expvar map.
// Updates arriving after Stop are discarded; the update channel itself is
// never closed, so late callers on other goroutines cannot panic during
// shutdown.
type Updater struct {
	vars       *expvar.Map
	updateChan chan *updateReq
	done       chan struct{}
	stopOnce   sync.Once
}

type updateReq struct {
	name  string
	value int
}

func NewUpdater(mux *http.ServeMux) *Updater {
	u := &Updater{
		updateChan: make(chan *updateReq, 512),
		done:       make(chan struct{}),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(u.expvarHandler))
	u.vars = expvar.NewMap("chatservice-stats")
	u.initializeMetrics()

	return u
}

func (u *Updater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data := make(map[string]any)
	u.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	json.NewEncoder(w).Encode(data)
}

func (u *Updater) initializeMetrics() {
	startTime := time.Now()
	u.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
}

func (u *Updater) updateMetrics() {
	for {
		select {
		case <-u.done:
			return
		case req := <-u.updateChan:
			metric := u.vars.Get(req.name)
			if metric == nil {
				panic("metric not found: " + req.name)
			}

			metric.(*expvar.Int).Add(int64(req.value))
		}
	}
}

func (u *Updater) submit(name string, value int) {
	select {
	case <-u.done:
	case u.updateChan <- &updateReq{name: name, value: value}:
	}
}

func (u *Updater) Incr(name string) {
	u.submit(name, 1)
}

func (u *Updater) Decr(name string) {
	u.submit(name, -1)
}

func (u *Updater) RegisterMetric(name string) {
	u.vars.Set(name, expvar.NewInt(name))
}

func (u *Updater) Run() {
	go u.updateMetrics()
}

// Stop is idempotent and safe to call while other goroutines are still
// reporting updates.
func (u *Updater) Stop() {
	u.stopOnce.Do(func() {
		close(u.done)
	})
}
