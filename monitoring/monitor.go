// Package monitoring serves the state of running queues over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/asyncqueue/idgen"
	"github.com/sarchlab/asyncqueue/monitoring/web"
	"github.com/sarchlab/asyncqueue/queueing"
)

// Inspectable is a queue that can be monitored. Every queueing.Queue
// satisfies it.
type Inspectable interface {
	Name() string
	Stats() queueing.Stats
}

// Monitor turns a process into a server that reports the state of its
// queues.
type Monitor struct {
	portNumber int
	ids        idgen.Generator

	queuesLock sync.Mutex
	queues     []Inspectable

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		ids: idgen.NewSequential(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterQueue registers a queue to be monitored. Queue names must be
// unique within a monitor.
func (m *Monitor) RegisterQueue(q Inspectable) {
	m.queuesLock.Lock()
	defer m.queuesLock.Unlock()

	for _, existing := range m.queues {
		if existing.Name() == q.Name() {
			log.Panicf("queue %s is already registered", q.Name())
		}
	}

	m.queues = append(m.queues, q)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_queues", m.listQueues)
	r.HandleFunc("/api/queue/{name}", m.queueDetails)
	r.HandleFunc("/api/hangdetector/queues", m.hangDetectorQueues)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", m.listenAddress())
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring queues with %s\n", url)

	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic(err)
		}
	}()

	return url, nil
}

// listenAddress returns the address to listen on. Port 0 lets the system
// pick a free port.
func (m *Monitor) listenAddress() string {
	return ":" + strconv.Itoa(m.portNumber)
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

// OpenInBrowser opens the monitor page in the default browser.
func OpenInBrowser(url string) error {
	return browser.OpenURL(url)
}

func (m *Monitor) snapshotQueues() []Inspectable {
	m.queuesLock.Lock()
	defer m.queuesLock.Unlock()

	queues := make([]Inspectable, len(m.queues))
	copy(queues, m.queues)

	return queues
}

func (m *Monitor) listQueues(w http.ResponseWriter, _ *http.Request) {
	queues := m.snapshotQueues()

	names := make([]string, len(queues))
	for i, q := range queues {
		names[i] = q.Name()
	}

	writeJSON(w, names)
}

func (m *Monitor) queueDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	q := m.findQueueOr404(w, name)
	if q == nil {
		return
	}

	stats := q.Stats()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&stats)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type queueLevel struct {
	Queue            string `json:"queue"`
	Level            int    `json:"level"`
	Cap              int    `json:"cap"`
	WaitingConsumers int    `json:"waiting_consumers"`
	WaitingProducers int    `json:"waiting_producers"`
}

func (m *Monitor) hangDetectorQueues(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := queuesParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	stats := make([]queueing.Stats, 0)
	for _, q := range m.snapshotQueues() {
		stats = append(stats, q.Stats())
	}

	selected := sortAndSelectQueues(stats, sortMethod, limit, offset)

	levels := make([]queueLevel, len(selected))
	for i, s := range selected {
		levels[i] = queueLevel{
			Queue:            s.Name,
			Level:            s.Size,
			Cap:              s.Capacity,
			WaitingConsumers: len(s.WaitingConsumers),
			WaitingProducers: len(s.WaitingProducers),
		}
	}

	writeJSON(w, levels)
}

func queuesParseParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	if limit < 0 || offset < 0 {
		return sortMethod, 0, 0, errors.New("limit and offset must not be negative")
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, key string) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return 0, nil
	}

	return strconv.Atoi(str)
}

// queuePercent returns the fill ratio of a queue. Unbounded queues count as
// empty so that bounded queues close to their limit sort first.
func queuePercent(s queueing.Stats) float64 {
	if s.Capacity == 0 {
		return 0
	}

	return float64(s.Size) / float64(s.Capacity)
}

// sortAndSelectQueues sorts by the given method and returns the page selected
// by offset and limit. A zero limit selects every queue after offset.
func sortAndSelectQueues(
	stats []queueing.Stats,
	sortMethod string,
	limit, offset int,
) []queueing.Stats {
	sorted := make([]queueing.Stats, len(stats))
	copy(sorted, stats)

	switch sortMethod {
	case "level":
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Size != sorted[j].Size {
				return sorted[i].Size > sorted[j].Size
			}

			return queuePercent(sorted[i]) > queuePercent(sorted[j])
		})
	case "percent":
		sort.SliceStable(sorted, func(i, j int) bool {
			percentI := queuePercent(sorted[i])
			percentJ := queuePercent(sorted[j])
			if percentI != percentJ {
				return percentI > percentJ
			}

			return sorted[i].Size > sorted[j].Size
		})
	default:
		panic("Invalid sort method " + sortMethod)
	}

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) findQueueOr404(
	w http.ResponseWriter,
	name string,
) Inspectable {
	for _, q := range m.snapshotQueues() {
		if q.Name() == name {
			return q
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Queue not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarSnapshot, len(m.progressBars))
	for i, b := range m.progressBars {
		bars[i] = b.Snapshot()
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
