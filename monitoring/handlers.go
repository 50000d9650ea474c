package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"time"

	// Serves /debug/pprof/ on the default mux.
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/memcoherence/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

var routes = []string{
	"/api/now",
	"/api/pause",
	"/api/continue",
	"/api/list_components",
	"/api/component/{name}",
	"/api/field/{json}",
	"/api/hangdetector/buffers",
	"/api/progress",
	"/api/resource",
	"/api/profile",
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	handlers := map[string]http.HandlerFunc{
		"/api/now":                  m.now,
		"/api/pause":                m.pause,
		"/api/continue":             m.resume,
		"/api/list_components":      m.listComponents,
		"/api/component/{name}":     m.componentDetails,
		"/api/field/{json}":         m.fieldValue,
		"/api/hangdetector/buffers": m.hangDetectorBuffers,
		"/api/progress":             m.listProgressBars,
		"/api/resource":             m.resources,
		"/api/profile":              m.cpuProfile,
	}

	for _, route := range routes {
		r.HandleFunc(route, handlers[route])
	}

	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.HandleFunc("/", index)

	return r
}

func index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "memory cache simulation monitor")
	fmt.Fprintln(w, strings.Join(routes, "\n"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("monitor: cannot encode response: %s", err)
	}
}

func fail(w http.ResponseWriter, code int, err error) {
	w.WriteHeader(code)
	fmt.Fprintf(w, "Error: %s", err)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.simLock.Lock()
	m.paused = true
	m.simLock.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.simLock.Lock()
	m.paused = false
	m.simLock.Unlock()
	m.resumed.Broadcast()

	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now    sim.VTimeInSec `json:"now"`
	Cycle  uint64         `json:"cycle"`
	Paused bool           `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.simLock.Lock()
	rsp := nowRsp{
		Now:    m.clock.CurrentTime(),
		Cycle:  m.clock.Now(),
		Paused: m.paused,
	}
	m.simLock.Unlock()

	writeJSON(w, rsp)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, len(m.components))
	for i, c := range m.components {
		names[i] = c.Name()
	}

	writeJSON(w, names)
}

func (m *Monitor) component(w http.ResponseWriter, name string) sim.Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	fail(w, http.StatusNotFound, fmt.Errorf("component %s not found", name))

	return nil
}

// serialize writes a component with goseth. Components that take snapshots
// are shown through their snapshot, which is small enough to go one level
// deeper.
func serialize(w http.ResponseWriter, c sim.Component, entry []string) {
	s := goseth.NewSerializer()

	if snap, ok := c.(Snapshotter); ok && entry == nil {
		s.SetRoot(snap.Snapshot())
		s.SetMaxDepth(2)
	} else {
		s.SetRoot(c)
		s.SetMaxDepth(1)
	}

	if entry != nil {
		if err := s.SetEntryPoint(entry); err != nil {
			fail(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := s.Serialize(w); err != nil {
		log.Printf("monitor: cannot serialize %s: %s", c.Name(), err)
	}
}

func (m *Monitor) componentDetails(w http.ResponseWriter, r *http.Request) {
	m.simLock.Lock()
	defer m.simLock.Unlock()

	if c := m.component(w, mux.Vars(r)["name"]); c != nil {
		serialize(w, c, nil)
	}
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}
	if err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}

	m.simLock.Lock()
	defer m.simLock.Unlock()

	if c := m.component(w, req.CompName); c != nil {
		serialize(w, c, strings.Split(req.FieldName, "."))
	}
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Peak   int    `json:"peak"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) hangDetectorBuffers(w http.ResponseWriter, r *http.Request) {
	q, err := parseBufferQuery(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}

	m.simLock.Lock()
	selected := q.apply(m.buffers)

	rsp := make([]bufferRsp, len(selected))
	for i, b := range selected {
		rsp[i] = bufferRsp{b.Name(), b.Size(), b.Peak(), b.Capacity()}
	}
	m.simLock.Unlock()

	writeJSON(w, rsp)
}

// bufferQuery orders the buffers from the fullest, by level or by fill
// ratio, with the other measure breaking ties. A zero limit selects all the
// buffers after the offset.
type bufferQuery struct {
	byLevel       bool
	limit, offset int
}

func parseBufferQuery(r *http.Request) (bufferQuery, error) {
	q := bufferQuery{}

	switch sortBy := r.URL.Query().Get("sort"); sortBy {
	case "", "percent":
	case "level":
		q.byLevel = true
	default:
		return q, fmt.Errorf(
			"invalid sort method %s, allowed values are level and percent",
			sortBy)
	}

	var err error

	if q.limit, err = intParam(r, "limit"); err != nil {
		return q, err
	}

	if q.offset, err = intParam(r, "offset"); err != nil {
		return q, err
	}

	if q.limit < 0 || q.offset < 0 {
		return q, errors.New("limit and offset must not be negative")
	}

	return q, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	return strconv.Atoi(s)
}

func fillRatio(b sim.Buffer) float64 {
	return float64(b.Size()) / float64(b.Capacity())
}

func (q bufferQuery) apply(buffers []sim.Buffer) []sim.Buffer {
	sorted := append([]sim.Buffer(nil), buffers...)

	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].Size(), sorted[j].Size()
		pi, pj := fillRatio(sorted[i]), fillRatio(sorted[j])

		if q.byLevel {
			if li != lj {
				return li > lj
			}

			return pi > pj
		}

		if pi != pj {
			return pi > pj
		}

		return li > lj
	})

	offset := min(q.offset, len(sorted))
	end := len(sorted)

	if q.limit > 0 {
		end = min(offset+q.limit, end)
	}

	return sorted[offset:end]
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.barsLock.Lock()
	views := make([]progressView, len(m.bars))
	for i, b := range m.bars {
		views[i] = b.view()
	}
	m.barsLock.Unlock()

	writeJSON(w, views)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) resources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	cpu, err := p.CPUPercent()
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, resourceRsp{CPUPercent: cpu, MemorySize: mem.RSS})
}

// cpuProfile samples the process for one second and returns the parsed
// profile.
func (m *Monitor) cpuProfile(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer

	if err := pprof.StartCPUProfile(&buf); err != nil {
		fail(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, prof)
}
